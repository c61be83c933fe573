package models

import "time"

// MessageType distinguishes stream messages from private ones.
type MessageType string

const (
	MessageTypeStream  MessageType = "stream"
	MessageTypePrivate MessageType = "private"
)

// Flag is a per-user message flag maintained by the server.
type Flag string

const (
	FlagRead              Flag = "read"
	FlagStarred           Flag = "starred"
	FlagMentioned         Flag = "mentioned"
	FlagWildcardMentioned Flag = "wildcard_mentioned"
)

// PmRecipient is one participant of a private message, as resolved into
// the canonical ID-keyed form.
type PmRecipient struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Message is a fully normalized message: every participant carries a
// numeric ID, regardless of what the server sent on the wire.
type Message struct {
	ID       int64       `json:"id"`
	Type     MessageType `json:"type"`
	SenderID int64       `json:"sender_id"`

	// StreamID and Topic are set for stream messages only.
	StreamID int64  `json:"stream_id,omitempty"`
	Topic    string `json:"topic,omitempty"`

	// Recipients is set for private messages only and includes the
	// sender; ordering is not significant.
	Recipients []PmRecipient `json:"recipients,omitempty"`

	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Flags are this client's flags on the message.
	Flags []Flag `json:"flags,omitempty"`
}

// HasFlag reports whether the message carries the given flag.
func (m *Message) HasFlag(f Flag) bool {
	for _, have := range m.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// IsMention reports whether the message mentions this client's user,
// directly or via a wildcard.
func (m *Message) IsMention() bool {
	return m.HasFlag(FlagMentioned) || m.HasFlag(FlagWildcardMentioned)
}

// ParticipantIDs returns the user IDs of all recipients of a private
// message, in no particular order. Empty for stream messages.
func (m *Message) ParticipantIDs() []int64 {
	if m.Type != MessageTypePrivate || len(m.Recipients) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(m.Recipients))
	for _, r := range m.Recipients {
		ids = append(ids, r.ID)
	}
	return ids
}

// AddFlag returns the message's flags with f added, without duplicates.
func AddFlag(flags []Flag, f Flag) []Flag {
	for _, have := range flags {
		if have == f {
			return flags
		}
	}
	return append(append([]Flag(nil), flags...), f)
}

// RemoveFlag returns the message's flags with f removed.
func RemoveFlag(flags []Flag, f Flag) []Flag {
	out := make([]Flag, 0, len(flags))
	for _, have := range flags {
		if have != f {
			out = append(out, have)
		}
	}
	return out
}
