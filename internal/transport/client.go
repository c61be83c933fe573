// Package transport maintains the websocket event-queue connection to
// the server. It dials, decodes event envelopes, and hands them to the
// session's event sink; on connection loss it reconnects with capped
// exponential backoff and resumes the queue from the last event ID it
// saw, so the store never misses or re-applies an event.
package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/talonchat/talon/internal/logging"
	"github.com/talonchat/talon/internal/models"
)

// Transport errors.
var (
	ErrBadServerURL = errors.New("bad server url")
	ErrQueueExpired = errors.New("event queue expired")
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultPingInterval     = 25 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultMaxBackoff       = 2 * time.Minute
	initialBackoff          = time.Second
)

// Config configures the event-queue connection.
type Config struct {
	// ServerURL is the http(s) base URL of the server.
	ServerURL string

	// Email and APIKey authenticate the session.
	Email  string
	APIKey string

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// PingInterval is the keep-alive ping cadence.
	PingInterval time.Duration

	// WriteTimeout bounds every outbound write.
	WriteTimeout time.Duration

	// MaxBackoff caps the reconnect backoff.
	MaxBackoff time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = defaultHandshakeTimeout
	}
	if out.PingInterval <= 0 {
		out.PingInterval = defaultPingInterval
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = defaultWriteTimeout
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = defaultMaxBackoff
	}
	return out
}

// EventFunc receives each decoded event envelope, in delivery order.
type EventFunc func(models.WireEvent)

// Client is one event-queue connection, usable for the lifetime of a
// session.
type Client struct {
	cfg      Config
	clientID string
	onEvent  EventFunc
	log      zerolog.Logger

	mu          sync.Mutex
	queueID     string
	lastEventID int64
}

// New builds a client. onEvent is called from the read loop for every
// decoded envelope; it must not block for long.
func New(cfg Config, onEvent EventFunc) (*Client, error) {
	if _, err := wireURL(cfg.ServerURL, "", "", -1); err != nil {
		return nil, err
	}
	if onEvent == nil {
		return nil, errors.New("transport: nil event func")
	}
	return &Client{
		cfg:      cfg.withDefaults(),
		clientID: uuid.NewString(),
		onEvent:  onEvent,
		log:      logging.Component("transport").With().Str("server_url", cfg.ServerURL).Logger(),
	}, nil
}

// Run connects and consumes events until ctx is cancelled, reconnecting
// on failure. A queue-expired close from the server is returned to the
// caller, which must re-register and start a fresh session.
func (c *Client) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		err := c.runOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrQueueExpired):
			return err
		}

		c.log.Warn().Err(err).Dur("backoff", backoff).Msg("connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, c.cfg.MaxBackoff)
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	c.mu.Lock()
	queueID, lastEventID := c.queueID, c.lastEventID
	c.mu.Unlock()

	target, err := wireURL(c.cfg.ServerURL, c.clientID, queueID, lastEventID)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := authHeader(c.cfg.Email, c.cfg.APIKey)
	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.ServerURL, err)
	}
	defer conn.Close()

	c.log.Info().Str("client_id", c.clientID).Msg("connected")

	stopPing := c.startPing(ctx, conn)
	defer stopPing()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				return fmt.Errorf("%w: %v", ErrQueueExpired, err)
			}
			return fmt.Errorf("read: %w", err)
		}

		ev, err := decodeEnvelope(data)
		if err != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			c.log.Warn().Err(err).Bytes("sample", sample).Msg("dropping undecodable envelope")
			continue
		}

		c.mu.Lock()
		if ev.ID > c.lastEventID {
			c.lastEventID = ev.ID
		}
		if ev.Type == models.EventTypeRegister && ev.Register != nil {
			c.queueID = ev.Register.QueueID
		}
		c.mu.Unlock()

		c.onEvent(ev)
	}
}

// startPing runs the keep-alive writer for one connection. The returned
// stop function blocks until the writer has exited, so only one
// goroutine ever writes to the connection.
func (c *Client) startPing(ctx context.Context, conn *websocket.Conn) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(c.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					c.log.Debug().Err(err).Msg("ping failed")
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

// LastEventID returns the highest event ID seen on this connection.
func (c *Client) LastEventID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

// decodeEnvelope decodes one wire frame into an event envelope.
func decodeEnvelope(data []byte) (models.WireEvent, error) {
	var ev models.WireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.WireEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	if ev.Type == "" {
		return models.WireEvent{}, errors.New("decode envelope: missing type")
	}
	return ev, nil
}

// wireURL derives the websocket endpoint from the server base URL,
// attaching the client ID and, on reconnect, the queue resume
// parameters.
func wireURL(serverURL, clientID, queueID string, lastEventID int64) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadServerURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrBadServerURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrBadServerURL)
	}
	u.Path = "/api/v1/events"

	q := u.Query()
	if clientID != "" {
		q.Set("client_id", clientID)
	}
	if queueID != "" {
		q.Set("queue_id", queueID)
		q.Set("last_event_id", strconv.FormatInt(lastEventID, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func authHeader(email, apiKey string) http.Header {
	header := http.Header{}
	if email != "" && apiKey != "" {
		header.Set("Authorization", "Basic "+
			base64.StdEncoding.EncodeToString([]byte(email+":"+apiKey)))
	}
	return header
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
