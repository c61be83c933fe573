// Package store owns the per-session client state: the user directory,
// the message cache, the unread index, the caught-up records, and the
// recent-conversations data. All mutation flows through the apply
// methods on a single Store, which serializes event processing; the
// query methods are read-only derived views and safe to call from any
// goroutine.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/talonchat/talon/internal/caughtup"
	"github.com/talonchat/talon/internal/events"
	"github.com/talonchat/talon/internal/logging"
	"github.com/talonchat/talon/internal/models"
	"github.com/talonchat/talon/internal/narrow"
	"github.com/talonchat/talon/internal/recents"
	"github.com/talonchat/talon/internal/unread"
)

// ErrNotRegistered marks an operation that needs a registration
// snapshot before any events or queries can be served.
var ErrNotRegistered = errors.New("store not registered")

// Store is the single owner of one session's client state.
type Store struct {
	mu  sync.RWMutex
	log zerolog.Logger

	registered    bool
	queueID       string
	ownUserID     int64
	serverVersion string

	dir           *models.Directory
	streamsByID   map[int64]models.Stream
	streamsByName map[string]int64
	mutes         models.MuteSet

	cache      *MessageCache
	unreads    unread.State
	caught     caughtup.State
	recentPCs  []recents.Entry
	summarizer *recents.Summarizer
	normalizer *events.Normalizer
}

// New returns an empty, unregistered store.
func New() *Store {
	return &Store{log: logging.Component("store")}
}

// ApplySnapshot resets the store to the state of a registration
// snapshot. Everything from any previous session is discarded, matching
// login and account-switch semantics.
func (s *Store) ApplySnapshot(snap events.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registered = true
	s.queueID = snap.QueueID
	s.ownUserID = snap.OwnUserID
	s.serverVersion = snap.ServerVersion

	s.dir = snap.Directory
	s.streamsByID = make(map[int64]models.Stream, len(snap.Streams))
	s.streamsByName = make(map[string]int64, len(snap.Streams))
	for _, st := range snap.Streams {
		s.streamsByID[st.ID] = st
		s.streamsByName[st.Name] = st.ID
	}
	s.mutes = snap.Mutes

	s.cache = NewMessageCache(snap.OwnUserID)
	s.unreads = unread.FromSnapshot(snap.Unreads)
	s.caught = caughtup.Empty()

	modern := snap.HasCapability(models.CapabilityRecentConversations)
	s.recentPCs = nil
	for _, rc := range snap.Recents {
		s.recentPCs = append(s.recentPCs, recents.Entry{
			MaxMessageID: rc.MaxMessageID,
			UserIDs:      rc.UserIDs,
		})
	}
	s.summarizer = recents.NewSummarizer(snap.Directory, snap.OwnUserID, modern)
	s.normalizer = events.NewNormalizer(snap.Directory, snap.OwnUserID)

	s.log.Info().
		Str("queue_id", snap.QueueID).
		Int64("own_user_id", snap.OwnUserID).
		Bool("modern_recents", modern).
		Int("users", snap.Directory.Len()).
		Int("unread_total", unread.Total(s.unreads)).
		Msg("session registered")
}

// Reset discards all session state, as on logout or a dead event queue.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registered = false
	s.queueID = ""
	s.ownUserID = 0
	s.serverVersion = ""
	s.dir = nil
	s.streamsByID = nil
	s.streamsByName = nil
	s.mutes = models.MuteSet{}
	s.cache = nil
	s.unreads = unread.Empty()
	s.caught = caughtup.Empty()
	s.recentPCs = nil
	s.summarizer = nil
	s.normalizer = nil
}

// Registered reports whether a snapshot has been applied.
func (s *Store) Registered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered
}

// QueueID returns the server event-queue ID of this session.
func (s *Store) QueueID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queueID
}

// OwnUserID returns the session's own user ID.
func (s *Store) OwnUserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownUserID
}

// Normalizer returns the session's event normalizer, or nil before
// registration.
func (s *Store) Normalizer() *events.Normalizer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.normalizer
}

// Apply folds one normalized event into the store.
func (s *Store) Apply(ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registered {
		return ErrNotRegistered
	}

	switch e := ev.(type) {
	case events.MessageReceived:
		s.applyMessage(e.Message)
		return nil

	case events.MessagesDeleted:
		// Resolve buckets before the cache forgets the messages.
		s.unreads = unread.ApplyDeleted(s.unreads, e.MessageIDs, s.cache)
		s.cache.Delete(e.MessageIDs)
		return nil

	case events.FlagsChanged:
		s.unreads = unread.ApplyFlagsChanged(s.unreads, unread.FlagsEvent{
			Flag:       e.Flag,
			Op:         e.Op,
			MessageIDs: e.MessageIDs,
			All:        e.All,
		})
		s.applyFlagsToCache(e)
		return nil

	case events.Heartbeat:
		return nil

	case nil:
		return nil

	default:
		return fmt.Errorf("unhandled event type %T", ev)
	}
}

func (s *Store) applyMessage(msg models.Message) {
	s.cache.Add(msg)
	s.unreads = unread.ApplyNewMessage(s.unreads, msg, s.ownUserID)

	if msg.Type != models.MessageTypePrivate {
		return
	}
	ids := narrow.KeyRecipientIDs(msg.ParticipantIDs(), s.ownUserID)
	if len(ids) == 0 {
		return
	}
	key := narrow.UserIDsKey(ids)
	for i := range s.recentPCs {
		if narrow.UserIDsKey(s.recentPCs[i].UserIDs) != key {
			continue
		}
		if msg.ID > s.recentPCs[i].MaxMessageID {
			s.recentPCs[i].MaxMessageID = msg.ID
		}
		return
	}
	s.recentPCs = append(s.recentPCs, recents.Entry{MaxMessageID: msg.ID, UserIDs: ids})
}

// applyFlagsToCache mirrors flag changes onto cached message copies, so
// later fetch-anchor arithmetic sees current read state.
func (s *Store) applyFlagsToCache(e events.FlagsChanged) {
	if e.All {
		return
	}
	for _, id := range e.MessageIDs {
		msg, ok := s.cache.Get(id)
		if !ok {
			continue
		}
		switch e.Op {
		case models.FlagOpAdd:
			msg.Flags = models.AddFlag(msg.Flags, e.Flag)
		case models.FlagOpRemove:
			msg.Flags = models.RemoveFlag(msg.Flags, e.Flag)
		}
		s.cache.Add(msg)
	}
}

// FetchResult is a completed message fetch for one conversation.
type FetchResult struct {
	Identity  narrow.Identity
	Anchor    int64
	NumBefore int
	NumAfter  int
	Messages  []models.Message
}

// ApplyFetchResult caches the fetched page and updates the
// conversation's caught-up record in one transition.
func (s *Store) ApplyFetchResult(res FetchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registered {
		return ErrNotRegistered
	}
	if res.Identity == nil {
		return fmt.Errorf("%w: fetch result without identity", narrow.ErrInvalidNarrow)
	}

	for _, msg := range res.Messages {
		s.cache.Add(msg)
	}
	s.caught = caughtup.Apply(s.caught, caughtup.Fetch{
		Key:       res.Identity.Key(),
		Anchor:    res.Anchor,
		NumBefore: res.NumBefore,
		NumAfter:  res.NumAfter,
		Messages:  res.Messages,
	})
	return nil
}

// TotalUnread returns the mute-aware total unread count.
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := unread.CountFor(s.unreads, narrow.AllMessages{}, s.mutes)
	if err != nil {
		return 0
	}
	return n
}

// UnreadFor returns the unread count for one conversation identity.
func (s *Store) UnreadFor(id narrow.Identity) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unread.CountFor(s.unreads, id, s.mutes)
}

// UnreadTopics lists every unread (stream, topic) bucket, newest first.
func (s *Store) UnreadTopics() []unread.TopicCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unread.TopicCounts(s.unreads, s.mutes)
}

// RecentConversations returns the recent private conversations, newest
// first, with unread counts attached.
func (s *Store) RecentConversations() []recents.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.summarizer == nil {
		return nil
	}
	return s.summarizer.Conversations(s.cache.PrivateMessages(), s.recentPCs, s.unreads)
}

// UnreadConversations returns RecentConversations filtered to entries
// with unreads.
func (s *Store) UnreadConversations() []recents.Summary {
	return recents.UnreadOnly(s.RecentConversations())
}

// CaughtUp returns the caught-up record for a conversation identity.
func (s *Store) CaughtUp(id narrow.Identity) caughtup.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caught.Get(id.Key())
}

// StreamName resolves a stream ID to its name, for display.
func (s *Store) StreamName(id int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.streamsByID[id]
	return st.Name, ok
}

// UserIDByEmail implements narrow.Resolver.
func (s *Store) UserIDByEmail(email string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dir == nil {
		return 0, false
	}
	u, ok := s.dir.ByEmail(email)
	return u.ID, ok
}

// StreamIDByName implements narrow.Resolver.
func (s *Store) StreamIDByName(name string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.streamsByName[name]
	return id, ok
}
