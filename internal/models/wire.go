package models

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a server event envelope.
type EventType string

const (
	EventTypeRegister    EventType = "register"
	EventTypeMessage     EventType = "message"
	EventTypeDelete      EventType = "delete_message"
	EventTypeUpdateFlags EventType = "update_message_flags"
	EventTypeReaction    EventType = "reaction"
	EventTypeHeartbeat   EventType = "heartbeat"
)

// FlagOp is the operation of an update_message_flags event.
type FlagOp string

const (
	FlagOpAdd    FlagOp = "add"
	FlagOpRemove FlagOp = "remove"
)

// CapabilityRecentConversations marks servers that precompute the
// recent-PM-conversations summary in the registration snapshot.
const CapabilityRecentConversations = "recent_private_conversations"

// WireRecipient is one participant of a private message as sent on the
// wire. Older servers omit the numeric ID and send only the email.
type WireRecipient struct {
	ID       int64  `json:"id,omitempty"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// WireMessage is a message as decoded off the wire, before
// normalization. DisplayRecipient is a stream name (string) for stream
// messages and a recipient list for private ones.
type WireMessage struct {
	ID               int64           `json:"id"`
	Type             MessageType     `json:"type"`
	SenderID         int64           `json:"sender_id"`
	SenderEmail      string          `json:"sender_email,omitempty"`
	StreamID         int64           `json:"stream_id,omitempty"`
	Subject          string          `json:"subject,omitempty"`
	DisplayRecipient json.RawMessage `json:"display_recipient,omitempty"`
	Content          string          `json:"content"`
	Timestamp        int64           `json:"timestamp"`
	Flags            []Flag          `json:"flags,omitempty"`
}

// StreamName decodes DisplayRecipient as a stream name.
func (w *WireMessage) StreamName() (string, error) {
	var name string
	if err := json.Unmarshal(w.DisplayRecipient, &name); err != nil {
		return "", fmt.Errorf("decode stream recipient: %w", err)
	}
	return name, nil
}

// PmRecipients decodes DisplayRecipient as a private-message recipient
// list.
func (w *WireMessage) PmRecipients() ([]WireRecipient, error) {
	var recipients []WireRecipient
	if err := json.Unmarshal(w.DisplayRecipient, &recipients); err != nil {
		return nil, fmt.Errorf("decode pm recipients: %w", err)
	}
	return recipients, nil
}

// WireEvent is one decoded event envelope from the server queue.
// Fields beyond ID and Type are populated per event type.
type WireEvent struct {
	ID   int64     `json:"id"`
	Type EventType `json:"type"`

	// message
	Message *WireMessage `json:"message,omitempty"`

	// delete_message
	MessageIDs []int64 `json:"message_ids,omitempty"`

	// update_message_flags
	Flag     Flag    `json:"flag,omitempty"`
	Op       FlagOp  `json:"op,omitempty"`
	Messages []int64 `json:"messages,omitempty"`
	All      bool    `json:"all,omitempty"`

	// register
	Register *RegisterPayload `json:"data,omitempty"`
}

// RegisterPayload is the initial bulk snapshot delivered when a new
// event queue is registered.
type RegisterPayload struct {
	QueueID            string       `json:"queue_id"`
	OwnUserID          int64        `json:"own_user_id"`
	ServerVersion      string       `json:"server_version"`
	ServerCapabilities []string     `json:"server_capabilities,omitempty"`
	Users              []User       `json:"users"`
	Streams            []Stream     `json:"streams"`
	MutedTopics        []MutedTopic `json:"muted_topics,omitempty"`

	UnreadMsgs UnreadMsgsWire `json:"unread_msgs"`

	// RecentPrivateConversations is only sent by servers advertising
	// CapabilityRecentConversations. UserIDs exclude the own user; an
	// empty list marks the self-1:1 conversation.
	RecentPrivateConversations []RecentConversationWire `json:"recent_private_conversations,omitempty"`
}

// HasCapability reports whether the snapshot advertises the capability.
func (p *RegisterPayload) HasCapability(name string) bool {
	for _, c := range p.ServerCapabilities {
		if c == name {
			return true
		}
	}
	return false
}

// UnreadMsgsWire is the server's unread summary inside the registration
// snapshot. All unread_message_ids lists arrive sorted ascending.
type UnreadMsgsWire struct {
	Streams  []UnreadStreamWire `json:"streams"`
	Pms      []UnreadPmWire     `json:"pms"`
	Huddles  []UnreadHuddleWire `json:"huddles"`
	Mentions []int64            `json:"mentions"`
}

// UnreadStreamWire is one (stream, topic) unread entry.
type UnreadStreamWire struct {
	StreamID         int64   `json:"stream_id"`
	Topic            string  `json:"topic"`
	UnreadMessageIDs []int64 `json:"unread_message_ids"`
}

// UnreadPmWire is one 1:1 unread entry, keyed by the sender.
type UnreadPmWire struct {
	SenderID         int64   `json:"sender_id"`
	UnreadMessageIDs []int64 `json:"unread_message_ids"`
}

// UnreadHuddleWire is one group-PM unread entry. UserIDsString is the
// sorted comma-joined IDs of every participant, self included.
type UnreadHuddleWire struct {
	UserIDsString    string  `json:"user_ids_string"`
	UnreadMessageIDs []int64 `json:"unread_message_ids"`
}

// RecentConversationWire is one server-supplied recent-PM entry.
type RecentConversationWire struct {
	MaxMessageID int64   `json:"max_message_id"`
	UserIDs      []int64 `json:"user_ids"`
}
