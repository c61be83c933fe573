// Package narrow canonicalizes conversation locators ("narrows") into a
// closed set of identity variants with stable, injective string keys.
//
// Every place in the client that needs to index per-conversation state
// derives its map key here, so that the same conversation always maps to
// the same key no matter which input shape it was constructed from.
package narrow

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Classification and identity errors.
var (
	// ErrInvalidNarrow marks a clause list whose shape matches no known
	// narrow. It indicates a local bug or unexpected server data; the
	// caller must not proceed with the malformed narrow.
	ErrInvalidNarrow = errors.New("invalid narrow")

	// ErrUnknownUser marks a user reference that cannot be resolved
	// against the local directory.
	ErrUnknownUser = errors.New("unknown user")

	// ErrEmptyPm marks a PM identity with no participants.
	ErrEmptyPm = errors.New("pm narrow requires at least one user")
)

// Operator is a narrow clause operator.
type Operator string

const (
	OpStream Operator = "stream"
	OpTopic  Operator = "topic"
	OpPmWith Operator = "pm-with"
	OpIs     Operator = "is"
	OpSearch Operator = "search"
)

// Clause is one operator/operand filter pair of a narrow.
type Clause struct {
	Operator Operator `json:"operator"`
	Operand  string   `json:"operand"`
}

// Identity is one canonical conversation identity. The set of
// implementations is closed; Key is injective across all of them.
type Identity interface {
	// Key returns the stable string key for map indexing.
	Key() string

	sealed()
}

// Stream identifies all messages in one stream.
type Stream struct {
	StreamID int64
}

func (Stream) sealed() {}

// Key returns "stream:<id>".
func (n Stream) Key() string { return fmt.Sprintf("stream:%d", n.StreamID) }

// Topic identifies one topic within a stream.
type Topic struct {
	StreamID int64
	Topic    string
}

func (Topic) sealed() {}

// Key returns "topic:<id>:<topic>".
func (n Topic) Key() string { return fmt.Sprintf("topic:%d:%s", n.StreamID, n.Topic) }

// Pm identifies a 1:1 or group private conversation by its
// key-recipient user IDs: every participant except the own user, except
// that the self-1:1 conversation is exactly the own user. The set is
// kept sorted and deduplicated, so construction order never matters.
type Pm struct {
	userIDs []int64
}

func (Pm) sealed() {}

// NewPm builds a Pm identity from key-recipient user IDs.
func NewPm(userIDs ...int64) (Pm, error) {
	if len(userIDs) == 0 {
		return Pm{}, ErrEmptyPm
	}
	return Pm{userIDs: canonicalIDs(userIDs)}, nil
}

// PmFromParticipants builds a Pm identity from the full participant set
// of a conversation, applying the key-recipient rule.
func PmFromParticipants(participantIDs []int64, ownUserID int64) (Pm, error) {
	return NewPm(KeyRecipientIDs(participantIDs, ownUserID)...)
}

// UserIDs returns a copy of the sorted key-recipient IDs.
func (n Pm) UserIDs() []int64 {
	return append([]int64(nil), n.userIDs...)
}

// IsGroup reports whether this is a group conversation.
func (n Pm) IsGroup() bool { return len(n.userIDs) > 1 }

// Key returns "pm:<id>,<id>,...".
func (n Pm) Key() string { return "pm:" + UserIDsKey(n.userIDs) }

// UnreadsKey returns the bucket key used by the unread index: the
// sorted comma-joined key-recipient IDs, with no variant prefix. Group
// keys always contain a comma; 1:1 keys never do.
func (n Pm) UnreadsKey() string { return UserIDsKey(n.userIDs) }

// AllMessages identifies the unfiltered home view.
type AllMessages struct{}

func (AllMessages) sealed() {}

// Key returns "all".
func (AllMessages) Key() string { return "all" }

// Starred identifies the starred-messages view.
type Starred struct{}

func (Starred) sealed() {}

// Key returns "starred".
func (Starred) Key() string { return "starred" }

// Mentioned identifies the mentions view.
type Mentioned struct{}

func (Mentioned) sealed() {}

// Key returns "mentioned".
func (Mentioned) Key() string { return "mentioned" }

// AllPms identifies the all-private-messages view.
type AllPms struct{}

func (AllPms) sealed() {}

// Key returns "all-pms".
func (AllPms) Key() string { return "all-pms" }

// Search identifies a full-text search view.
type Search struct {
	Query string
}

func (Search) sealed() {}

// Key returns "search:<query>".
func (n Search) Key() string { return "search:" + n.Query }

// KeyRecipientIDs applies the key-recipient rule to a conversation's
// full participant set: all participants except the own user, except
// that a single-participant set (the self-1:1 conversation) is kept
// as-is. The result is sorted and deduplicated.
func KeyRecipientIDs(participantIDs []int64, ownUserID int64) []int64 {
	ids := canonicalIDs(participantIDs)
	if len(ids) <= 1 {
		return ids
	}
	out := ids[:0:0]
	for _, id := range ids {
		if id != ownUserID {
			out = append(out, id)
		}
	}
	return out
}

// UserIDsKey joins user IDs into the canonical sorted comma-joined
// string form.
func UserIDsKey(userIDs []int64) string {
	ids := canonicalIDs(userIDs)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// ParseUserIDsKey splits a sorted comma-joined ID string back into IDs.
func ParseUserIDsKey(key string) ([]int64, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty user id key", ErrInvalidNarrow)
	}
	parts := strings.Split(key, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad user id %q", ErrInvalidNarrow, part)
		}
		ids = append(ids, id)
	}
	return canonicalIDs(ids), nil
}

func canonicalIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	// Dedupe in place; the list is sorted.
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
