package store

import (
	"sort"

	"github.com/talonchat/talon/internal/models"
	"github.com/talonchat/talon/internal/narrow"
	"github.com/talonchat/talon/internal/unread"
)

// MessageCache holds the messages fetched or received this session,
// keyed by ID. It doubles as the unread index's bucket lookup: a cached
// message pins down exactly which unread bucket its ID lives in, which
// keeps deletions from scanning every bucket.
type MessageCache struct {
	messages  map[int64]models.Message
	ownUserID int64
}

// NewMessageCache builds an empty cache for one session.
func NewMessageCache(ownUserID int64) *MessageCache {
	return &MessageCache{
		messages:  make(map[int64]models.Message),
		ownUserID: ownUserID,
	}
}

// Add inserts or replaces a message.
func (c *MessageCache) Add(msg models.Message) {
	if msg.ID <= 0 {
		return
	}
	c.messages[msg.ID] = msg
}

// Get returns a cached message.
func (c *MessageCache) Get(id int64) (models.Message, bool) {
	msg, ok := c.messages[id]
	return msg, ok
}

// Delete removes messages from the cache.
func (c *MessageCache) Delete(ids []int64) {
	for _, id := range ids {
		delete(c.messages, id)
	}
}

// Len returns the number of cached messages.
func (c *MessageCache) Len() int { return len(c.messages) }

// PrivateMessages returns all cached private messages, ascending by ID.
func (c *MessageCache) PrivateMessages() []models.Message {
	var out []models.Message
	for _, msg := range c.messages {
		if msg.Type == models.MessageTypePrivate {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BucketFor implements unread.Lookup.
func (c *MessageCache) BucketFor(messageID int64) (unread.BucketRef, bool) {
	msg, ok := c.messages[messageID]
	if !ok {
		return unread.BucketRef{}, false
	}

	switch msg.Type {
	case models.MessageTypeStream:
		return unread.BucketRef{
			Kind:     unread.BucketStreamTopic,
			StreamID: msg.StreamID,
			Topic:    msg.Topic,
		}, true

	case models.MessageTypePrivate:
		ids := narrow.KeyRecipientIDs(msg.ParticipantIDs(), c.ownUserID)
		if len(ids) == 0 {
			return unread.BucketRef{}, false
		}
		if len(ids) == 1 {
			return unread.BucketRef{Kind: unread.BucketPm, SenderID: ids[0]}, true
		}
		return unread.BucketRef{
			Kind: unread.BucketHuddle,
			Key:  narrow.UserIDsKey(ids),
		}, true

	default:
		return unread.BucketRef{}, false
	}
}
