package models

import (
	"fmt"
	"strings"
)

// Stream represents a stream (channel) on the server.
type Stream struct {
	ID         int64  `json:"stream_id"`
	Name       string `json:"name"`
	InviteOnly bool   `json:"invite_only"`
}

// MutedTopic identifies a muted (stream, topic) pair.
type MutedTopic struct {
	StreamID int64  `json:"stream_id"`
	Topic    string `json:"topic"`
}

// MuteSet is an immutable snapshot of the muted-topic configuration,
// consulted by unread queries. The zero value mutes nothing.
type MuteSet struct {
	muted map[string]struct{}
}

// NewMuteSet builds a MuteSet from muted-topic pairs.
func NewMuteSet(pairs []MutedTopic) MuteSet {
	if len(pairs) == 0 {
		return MuteSet{}
	}
	muted := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		topic := strings.TrimSpace(p.Topic)
		if p.StreamID <= 0 || topic == "" {
			continue
		}
		muted[muteKey(p.StreamID, topic)] = struct{}{}
	}
	return MuteSet{muted: muted}
}

// IsMuted reports whether the given topic is muted.
func (m MuteSet) IsMuted(streamID int64, topic string) bool {
	if len(m.muted) == 0 {
		return false
	}
	_, ok := m.muted[muteKey(streamID, topic)]
	return ok
}

// Len returns the number of muted topics.
func (m MuteSet) Len() int {
	return len(m.muted)
}

func muteKey(streamID int64, topic string) string {
	return fmt.Sprintf("%d\x00%s", streamID, topic)
}
