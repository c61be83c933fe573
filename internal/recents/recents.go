// Package recents derives the recent-private-conversations summary:
// one entry per 1:1 or group conversation, newest first, with the
// participants to display and the conversation's unread count attached.
//
// Two strategies produce the list. Modern servers precompute it and
// send it in the registration snapshot; older servers leave the client
// to approximate it by collapsing the locally cached private messages.
// Both produce the same summary shape, so consumers never care which
// strategy ran.
package recents

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/talonchat/talon/internal/logging"
	"github.com/talonchat/talon/internal/models"
	"github.com/talonchat/talon/internal/narrow"
	"github.com/talonchat/talon/internal/unread"
)

// Entry is one server-supplied recent-conversation record, normalized
// to key-recipient user IDs.
type Entry struct {
	MaxMessageID int64
	UserIDs      []int64
}

// Summary is one conversation in the recents list.
type Summary struct {
	// Key is the conversation's unreads key: sorted comma-joined
	// key-recipient IDs.
	Key string

	// MsgID is the newest known message ID in the conversation.
	MsgID int64

	// Users are the key-recipient users, for display.
	Users []models.User

	// UnreadCount is the conversation's current unread total.
	UnreadCount int
}

// Summarizer computes recent-conversation summaries for one session.
type Summarizer struct {
	dir       *models.Directory
	ownUserID int64
	modern    bool
	log       zerolog.Logger
}

// NewSummarizer builds a summarizer. modern selects the server-supplied
// strategy; pass the registration snapshot's capability check.
func NewSummarizer(dir *models.Directory, ownUserID int64, modern bool) *Summarizer {
	return &Summarizer{
		dir:       dir,
		ownUserID: ownUserID,
		modern:    modern,
		log:       logging.Component("recents"),
	}
}

// Modern reports which strategy the summarizer uses.
func (s *Summarizer) Modern() bool { return s.modern }

// Conversations returns the recents list, newest first. messages is the
// cached private-message set (used by the legacy strategy); entries is
// the server-maintained list (used by the modern one). Entries whose
// participants cannot be resolved against the directory are dropped
// rather than failing the whole list.
func (s *Summarizer) Conversations(messages []models.Message, entries []Entry, us unread.State) []Summary {
	if s.modern {
		return s.fromEntries(entries, us)
	}
	return s.fromMessages(messages, us)
}

// UnreadOnly filters a recents list to conversations with unreads.
func UnreadOnly(summaries []Summary) []Summary {
	out := make([]Summary, 0, len(summaries))
	for _, sum := range summaries {
		if sum.UnreadCount > 0 {
			out = append(out, sum)
		}
	}
	return out
}

func (s *Summarizer) fromEntries(entries []Entry, us unread.State) []Summary {
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		users, ok := s.resolveUsers(e.UserIDs)
		if !ok {
			continue
		}
		key := narrow.UserIDsKey(e.UserIDs)
		out = append(out, Summary{
			Key:         key,
			MsgID:       e.MaxMessageID,
			Users:       users,
			UnreadCount: unread.CountForPmKey(us, key),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MsgID > out[j].MsgID })
	return out
}

// fromMessages approximates the recents list from cached messages:
// collapse every private message onto its conversation key, keeping the
// newest message ID per key.
func (s *Summarizer) fromMessages(messages []models.Message, us unread.State) []Summary {
	latest := make(map[string]int64)
	keyIDs := make(map[string][]int64)
	for i := range messages {
		msg := &messages[i]
		if msg.Type != models.MessageTypePrivate {
			continue
		}
		ids := narrow.KeyRecipientIDs(msg.ParticipantIDs(), s.ownUserID)
		if len(ids) == 0 {
			continue
		}
		key := narrow.UserIDsKey(ids)
		if prev, ok := latest[key]; !ok || msg.ID > prev {
			latest[key] = msg.ID
			keyIDs[key] = ids
		}
	}

	out := make([]Summary, 0, len(latest))
	for key, msgID := range latest {
		users, ok := s.resolveUsers(keyIDs[key])
		if !ok {
			continue
		}
		out = append(out, Summary{
			Key:         key,
			MsgID:       msgID,
			Users:       users,
			UnreadCount: unread.CountForPmKey(us, key),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MsgID > out[j].MsgID })
	return out
}

// resolveUsers maps key-recipient IDs to user records. One unresolvable
// participant drops the conversation from the list; a stale directory
// must not break the rest of it.
func (s *Summarizer) resolveUsers(ids []int64) ([]models.User, bool) {
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u, ok := s.dir.ByID(id)
		if !ok {
			s.log.Warn().Int64("user_id", id).Msg("dropping conversation with unknown participant")
			return nil, false
		}
		users = append(users, u)
	}
	return users, true
}
