package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/talonchat/talon/internal/events"
	"github.com/talonchat/talon/internal/logging"
	"github.com/talonchat/talon/internal/models"
	"github.com/talonchat/talon/internal/store"
	"github.com/talonchat/talon/internal/transport"
)

const registerTimeout = 30 * time.Second

// session wires the transport's event stream into a store.
type session struct {
	store  *store.Store
	client *transport.Client

	readyOnce sync.Once
	ready     chan struct{}
}

func newSession(account *models.Account) (*session, error) {
	cfg := GetConfig()

	s := &session{
		store: store.New(),
		ready: make(chan struct{}),
	}

	client, err := transport.New(transport.Config{
		ServerURL:        account.ServerURL,
		Email:            account.Email,
		APIKey:           account.APIKey,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		PingInterval:     cfg.Server.PingInterval,
		MaxBackoff:       cfg.Server.MaxReconnectBackoff,
	}, s.handle)
	if err != nil {
		return nil, err
	}
	s.client = client
	return s, nil
}

// run consumes the event queue until ctx is cancelled.
func (s *session) run(ctx context.Context) error {
	return s.client.Run(ctx)
}

// waitReady blocks until the registration snapshot has been applied.
func (s *session) waitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for registration: %w", ctx.Err())
	}
}

func (s *session) handle(ev models.WireEvent) {
	log := logging.Component("session")

	if ev.Type == models.EventTypeRegister {
		snap, err := events.NormalizeSnapshot(ev.Register)
		if err != nil {
			log.Error().Err(err).Msg("bad registration snapshot")
			return
		}
		s.store.ApplySnapshot(snap)
		s.readyOnce.Do(func() { close(s.ready) })
		return
	}

	normalizer := s.store.Normalizer()
	if normalizer == nil {
		// Events before the snapshot cannot be applied; the snapshot
		// that follows supersedes them anyway.
		log.Debug().Str("type", string(ev.Type)).Msg("dropping pre-registration event")
		return
	}

	normalized, err := normalizer.Normalize(ev)
	if err != nil {
		log.Warn().Err(err).Int64("event_id", ev.ID).Msg("dropping malformed event")
		return
	}
	if normalized == nil {
		return
	}
	if err := s.store.Apply(normalized); err != nil {
		log.Error().Err(err).Int64("event_id", ev.ID).Msg("failed to apply event")
	}
}

// withSession connects a session for account, waits for registration,
// and calls fn with the populated store. The connection is torn down
// when fn returns.
func withSession(ctx context.Context, account *models.Account, fn func(*store.Store) error) error {
	s, err := newSession(account)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- s.run(runCtx) }()

	waitCtx, waitCancel := context.WithTimeout(runCtx, registerTimeout)
	defer waitCancel()
	if err := s.waitReady(waitCtx); err != nil {
		cancel()
		if connErr := <-runErr; connErr != nil && connErr != context.Canceled {
			return connErr
		}
		return err
	}

	return fn(s.store)
}
