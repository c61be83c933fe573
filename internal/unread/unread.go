// Package unread maintains the per-conversation unread-message index.
//
// The index mirrors the server's unread summary: per-(stream, topic)
// unread message ID lists, per-1:1-sender lists, per-group-conversation
// lists keyed by the sorted comma-joined key-recipient IDs, and a flat
// mention list. All apply operations are pure: they take a State and
// return a new one, never mutating shared structure in place.
//
// The index may reference message IDs whose bodies are not locally
// cached; it is rebuilt from the next registration snapshot rather than
// persisted.
package unread

import (
	"errors"

	"github.com/talonchat/talon/internal/models"
	"github.com/talonchat/talon/internal/narrow"
)

// ErrUnsupportedQuery marks an unread query for an identity variant
// with no defined unread semantics. This is a programmer error at the
// call site.
var ErrUnsupportedQuery = errors.New("unsupported unread query")

// State is the unread index. The zero value is the empty state.
type State struct {
	// streams: streamID -> topic -> ascending unread message IDs.
	streams map[int64]map[string][]int64

	// pms: 1:1 sender user ID -> ascending unread message IDs.
	pms map[int64][]int64

	// huddles: sorted comma-joined key-recipient IDs -> ascending
	// unread message IDs.
	huddles map[string][]int64

	// mentions: ascending IDs of messages that mention this user.
	mentions []int64
}

// Empty returns the empty unread state.
func Empty() State { return State{} }

// Snapshot is the normalized unread summary from a registration
// snapshot. Huddle keys are already in key-recipient form.
type Snapshot struct {
	Streams  []StreamBucket
	Pms      []PmBucket
	Huddles  []HuddleBucket
	Mentions []int64
}

// StreamBucket is one (stream, topic) unread entry.
type StreamBucket struct {
	StreamID   int64
	Topic      string
	MessageIDs []int64
}

// PmBucket is one 1:1 unread entry.
type PmBucket struct {
	SenderID   int64
	MessageIDs []int64
}

// HuddleBucket is one group-PM unread entry.
type HuddleBucket struct {
	Key        string
	MessageIDs []int64
}

// FromSnapshot replaces state wholly from a registration snapshot.
func FromSnapshot(snap Snapshot) State {
	s := State{}
	if len(snap.Streams) > 0 {
		s.streams = make(map[int64]map[string][]int64)
		for _, b := range snap.Streams {
			if len(b.MessageIDs) == 0 {
				continue
			}
			perStream := s.streams[b.StreamID]
			if perStream == nil {
				perStream = make(map[string][]int64)
				s.streams[b.StreamID] = perStream
			}
			perStream[b.Topic] = ascending(b.MessageIDs)
		}
	}
	if len(snap.Pms) > 0 {
		s.pms = make(map[int64][]int64, len(snap.Pms))
		for _, b := range snap.Pms {
			if len(b.MessageIDs) == 0 {
				continue
			}
			s.pms[b.SenderID] = ascending(b.MessageIDs)
		}
	}
	if len(snap.Huddles) > 0 {
		s.huddles = make(map[string][]int64, len(snap.Huddles))
		for _, b := range snap.Huddles {
			if len(b.MessageIDs) == 0 || b.Key == "" {
				continue
			}
			s.huddles[b.Key] = ascending(b.MessageIDs)
		}
	}
	if len(snap.Mentions) > 0 {
		s.mentions = ascending(snap.Mentions)
	}
	return s
}

// ApplyNewMessage records a newly arrived message in its conversation's
// bucket, unless it was sent by the own user or is already present.
// Mention flags additionally feed the mention bucket.
func ApplyNewMessage(s State, msg models.Message, ownUserID int64) State {
	if msg.SenderID == ownUserID {
		return s
	}

	out := s
	switch msg.Type {
	case models.MessageTypeStream:
		bucket := s.bucketFor(msg.StreamID, msg.Topic)
		if !containsID(bucket, msg.ID) {
			out.streams = cloneStreamMap(s.streams)
			perStream := cloneTopicMap(out.streams[msg.StreamID])
			perStream[msg.Topic] = insertID(bucket, msg.ID)
			out.streams[msg.StreamID] = perStream
		}

	case models.MessageTypePrivate:
		ids := narrow.KeyRecipientIDs(msg.ParticipantIDs(), ownUserID)
		switch {
		case len(ids) == 1:
			if !containsID(s.pms[ids[0]], msg.ID) {
				out.pms = clonePmMap(s.pms)
				out.pms[ids[0]] = insertID(s.pms[ids[0]], msg.ID)
			}
		case len(ids) > 1:
			key := narrow.UserIDsKey(ids)
			if !containsID(s.huddles[key], msg.ID) {
				out.huddles = cloneHuddleMap(s.huddles)
				out.huddles[key] = insertID(s.huddles[key], msg.ID)
			}
		}
	}

	if msg.IsMention() && !containsID(s.mentions, msg.ID) {
		out.mentions = insertID(s.mentions, msg.ID)
	}

	return out
}

// FlagsEvent is a normalized update_message_flags event.
type FlagsEvent struct {
	Flag       models.Flag
	Op         models.FlagOp
	MessageIDs []int64
	All        bool
}

// ApplyFlagsChanged applies a flags event. Only the "read" flag affects
// unread state: marking everything read clears all buckets, adding the
// read flag removes the IDs from every bucket holding them, and
// removing it is a no-op since the server protocol does not support
// un-reading a message.
func ApplyFlagsChanged(s State, ev FlagsEvent) State {
	if ev.Flag != models.FlagRead {
		return s
	}
	if ev.All {
		return Empty()
	}
	if ev.Op == models.FlagOpRemove {
		// Un-reading is not part of the protocol.
		return s
	}
	return removeIDs(s, ev.MessageIDs, nil)
}

// BucketKind identifies which unread bucket holds a message.
type BucketKind int

const (
	BucketUnknown BucketKind = iota
	BucketStreamTopic
	BucketPm
	BucketHuddle
)

// BucketRef locates a message's unread bucket.
type BucketRef struct {
	Kind     BucketKind
	StreamID int64
	Topic    string
	SenderID int64
	Key      string
}

// Lookup resolves a message ID to its unread bucket, typically backed
// by the message cache. Returning false falls back to scanning every
// bucket for that ID.
type Lookup interface {
	BucketFor(messageID int64) (BucketRef, bool)
}

// ApplyDeleted removes deleted message IDs from every bucket that could
// contain them, using lookup to target the removal where the message's
// conversation is locally known.
func ApplyDeleted(s State, messageIDs []int64, lookup Lookup) State {
	return removeIDs(s, messageIDs, lookup)
}
