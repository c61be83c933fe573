package unread

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/talonchat/talon/internal/models"
	"github.com/talonchat/talon/internal/narrow"
)

// Total returns the grand unread total across all four buckets.
func Total(s State) int {
	total := len(s.mentions)
	for _, perStream := range s.streams {
		for _, bucket := range perStream {
			total += len(bucket)
		}
	}
	for _, bucket := range s.pms {
		total += len(bucket)
	}
	for _, bucket := range s.huddles {
		total += len(bucket)
	}
	return total
}

// CountFor returns the unread count for one conversation identity.
// Stream counts sum the stream's unmuted topics; a topic's own count
// ignores muting. Identities with no defined unread semantics return 0,
// except Search which fails with ErrUnsupportedQuery.
func CountFor(s State, id narrow.Identity, mute models.MuteSet) (int, error) {
	switch n := id.(type) {
	case narrow.AllMessages:
		return totalWithMute(s, mute), nil

	case narrow.Stream:
		total := 0
		for topic, bucket := range s.streams[n.StreamID] {
			if mute.IsMuted(n.StreamID, topic) {
				continue
			}
			total += len(bucket)
		}
		return total, nil

	case narrow.Topic:
		return len(s.bucketFor(n.StreamID, n.Topic)), nil

	case narrow.Pm:
		return CountForPmKey(s, n.UnreadsKey()), nil

	case narrow.Starred, narrow.Mentioned, narrow.AllPms:
		return 0, nil

	case narrow.Search:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedQuery, id.Key())

	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedQuery, id.Key())
	}
}

// CountForPmKey returns the unread count for a PM unreads key. The key
// spaces are disjoint: group keys always contain a comma, 1:1 keys
// never do, so one combined lookup is unambiguous.
func CountForPmKey(s State, key string) int {
	if strings.Contains(key, ",") {
		return len(s.huddles[key])
	}
	senderID, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0
	}
	return len(s.pms[senderID])
}

// TopicCount summarizes one (stream, topic) bucket for display.
type TopicCount struct {
	StreamID     int64
	Topic        string
	Count        int
	LastUnreadID int64
	Muted        bool
}

// TopicCounts lists every non-empty (stream, topic) bucket, most
// recently active first.
func TopicCounts(s State, mute models.MuteSet) []TopicCount {
	var out []TopicCount
	for streamID, perStream := range s.streams {
		for topic, bucket := range perStream {
			if len(bucket) == 0 {
				continue
			}
			out = append(out, TopicCount{
				StreamID:     streamID,
				Topic:        topic,
				Count:        len(bucket),
				LastUnreadID: bucket[len(bucket)-1],
				Muted:        mute.IsMuted(streamID, topic),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUnreadID > out[j].LastUnreadID
	})
	return out
}

// MentionsCount returns the number of unread mentions.
func MentionsCount(s State) int { return len(s.mentions) }

// PmTotal returns the unread total across all 1:1 and group
// conversations.
func PmTotal(s State) int {
	total := 0
	for _, bucket := range s.pms {
		total += len(bucket)
	}
	for _, bucket := range s.huddles {
		total += len(bucket)
	}
	return total
}

func totalWithMute(s State, mute models.MuteSet) int {
	total := len(s.mentions) + PmTotal(s)
	for streamID, perStream := range s.streams {
		for topic, bucket := range perStream {
			if mute.IsMuted(streamID, topic) {
				continue
			}
			total += len(bucket)
		}
	}
	return total
}
