// Package caughtup tracks, per conversation, whether the locally
// fetched message range is known to reach the oldest and newest
// messages the server has. Consumers use it to decide whether a
// conversation needs further fetching and whether its local history can
// be trusted as complete.
package caughtup

import (
	"math"

	"github.com/talonchat/talon/internal/models"
)

// Anchor sentinels for fetch requests. Any other anchor value is an
// exact message ID.
const (
	// AnchorFirstUnread asks the server to center the fetch on the
	// oldest unread message.
	AnchorFirstUnread int64 = 0

	// AnchorNewest asks the server for the newest messages.
	AnchorNewest int64 = math.MaxInt64
)

// Record is the caught-up status of one conversation. The zero value
// means nothing is known, which consumers must treat the same as an
// absent record.
type Record struct {
	// Older is true once a fetch has reached the oldest message.
	Older bool

	// Newer is true once a fetch has reached the newest message.
	Newer bool
}

// State maps conversation keys to their caught-up records. The zero
// value is the empty state.
type State struct {
	records map[string]Record
}

// Empty returns the empty caught-up state.
func Empty() State { return State{} }

// Get returns the record for a conversation key. A missing record reads
// as not caught up in either direction.
func (s State) Get(key string) Record { return s.records[key] }

// Len returns the number of tracked conversations.
func (s State) Len() int { return len(s.records) }

// Fetch describes a completed message fetch.
type Fetch struct {
	// Key is the conversation key the fetch was narrowed to.
	Key string

	// Anchor is the requested anchor: a message ID or one of the
	// sentinels above.
	Anchor int64

	// NumBefore and NumAfter are the requested page sizes on each side
	// of the anchor.
	NumBefore int
	NumAfter  int

	// Messages is the returned page, ascending by ID.
	Messages []models.Message
}

// Apply folds a completed fetch into the state. A boundary counts as
// reached when the server returned fewer messages on that side of the
// anchor than were requested. Records are merged monotonically: a
// boolean that is already true stays true, so an older narrow page can
// never un-catch-up a conversation.
func Apply(s State, f Fetch) State {
	older, newer := boundaries(f)
	prev := s.records[f.Key]
	next := Record{Older: prev.Older || older, Newer: prev.Newer || newer}
	if next == prev {
		if _, ok := s.records[f.Key]; ok {
			return s
		}
	}

	out := State{records: make(map[string]Record, len(s.records)+1)}
	for k, v := range s.records {
		out.records[k] = v
	}
	out.records[f.Key] = next
	return out
}

// boundaries computes which boundaries one fetch page reached.
//
// The anchor's position within the page decides how many messages came
// back on each side. A newest-sentinel fetch reaches the newer boundary
// unconditionally and anchors on the last returned message, so a page
// of exactly NumBefore messages still proves the older boundary. For
// other anchors the messages from the anchor onward count toward the
// "after" side; an anchor missing from the page is treated as past the
// end. When a fetch around the anchor returns more messages than
// requested (the page includes the anchor message itself), the overflow
// is discounted from the after side so a full page never reads as
// caught up.
func boundaries(f Fetch) (older, newer bool) {
	n := len(f.Messages)

	if f.Anchor == AnchorNewest {
		anchorIdx := n - 1
		if anchorIdx < 0 {
			anchorIdx = 0
		}
		return anchorIdx < f.NumBefore, true
	}

	anchorIdx := anchorIndex(f)

	adjustment := 0
	if requested := f.NumBefore + f.NumAfter; n > requested && f.NumBefore > 0 {
		adjustment = requested - n
	}

	older = anchorIdx < f.NumBefore
	newer = n-anchorIdx+adjustment < f.NumAfter
	return older, newer
}

func anchorIndex(f Fetch) int {
	if f.Anchor == AnchorFirstUnread {
		for i, msg := range f.Messages {
			if !msg.HasFlag(models.FlagRead) {
				return i
			}
		}
		return len(f.Messages)
	}
	for i, msg := range f.Messages {
		if msg.ID == f.Anchor {
			return i
		}
	}
	return len(f.Messages)
}
