// Package events normalizes decoded server payloads into the typed
// event shapes the store consumes. Normalization resolves every
// email-keyed participant to a numeric user ID and converts the
// server's self-inclusive group-conversation keys into key-recipient
// form, so everything downstream indexes conversations one way only.
package events

import (
	"github.com/talonchat/talon/internal/models"
	"github.com/talonchat/talon/internal/unread"
)

// Event is one normalized server event. The set of implementations is
// closed.
type Event interface {
	eventType() models.EventType
}

// MessageReceived carries one normalized new message.
type MessageReceived struct {
	Message models.Message
}

func (MessageReceived) eventType() models.EventType { return models.EventTypeMessage }

// MessagesDeleted carries the IDs of server-deleted messages.
type MessagesDeleted struct {
	MessageIDs []int64
}

func (MessagesDeleted) eventType() models.EventType { return models.EventTypeDelete }

// FlagsChanged carries an update_message_flags event.
type FlagsChanged struct {
	Flag       models.Flag
	Op         models.FlagOp
	MessageIDs []int64
	All        bool
}

func (FlagsChanged) eventType() models.EventType { return models.EventTypeUpdateFlags }

// Heartbeat is the queue keep-alive; it carries no state.
type Heartbeat struct{}

func (Heartbeat) eventType() models.EventType { return models.EventTypeHeartbeat }

// RecentConversation is one normalized recent-PM entry: the newest
// message ID of the conversation and its key-recipient user IDs.
type RecentConversation struct {
	MaxMessageID int64
	UserIDs      []int64
}

// Snapshot is the normalized registration snapshot: the session's
// starting state after a queue (re-)registration.
type Snapshot struct {
	QueueID       string
	OwnUserID     int64
	ServerVersion string
	Capabilities  []string

	Directory *models.Directory
	Streams   []models.Stream
	Mutes     models.MuteSet

	// Unreads has group-conversation keys already converted to
	// key-recipient form.
	Unreads unread.Snapshot

	// Recents is only populated for servers that precompute the
	// recent-conversations summary.
	Recents []RecentConversation
}

// HasCapability reports whether the snapshot's server advertises the
// capability.
func (s *Snapshot) HasCapability(name string) bool {
	for _, c := range s.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}
