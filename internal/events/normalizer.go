package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/talonchat/talon/internal/logging"
	"github.com/talonchat/talon/internal/models"
	"github.com/talonchat/talon/internal/narrow"
	"github.com/talonchat/talon/internal/unread"
)

// Normalization errors.
var (
	// ErrUnknownSender marks a message whose sender cannot be resolved.
	ErrUnknownSender = errors.New("unknown sender")

	// ErrMalformedEvent marks an envelope missing its required payload.
	ErrMalformedEvent = errors.New("malformed event")
)

// Normalizer converts wire payloads into normalized events, resolving
// legacy email-keyed participants through the session's user directory.
type Normalizer struct {
	dir       *models.Directory
	ownUserID int64
	log       zerolog.Logger
}

// NewNormalizer builds a normalizer for one session.
func NewNormalizer(dir *models.Directory, ownUserID int64) *Normalizer {
	return &Normalizer{
		dir:       dir,
		ownUserID: ownUserID,
		log:       logging.Component("events"),
	}
}

// Normalize converts one wire envelope into a normalized event. A nil
// event with a nil error means the envelope carries nothing for the
// store (reactions, and messages dropped because a participant cannot
// be resolved).
func (n *Normalizer) Normalize(ev models.WireEvent) (Event, error) {
	switch ev.Type {
	case models.EventTypeMessage:
		if ev.Message == nil {
			return nil, fmt.Errorf("%w: message event without message", ErrMalformedEvent)
		}
		msg, err := n.NormalizeMessage(ev.Message)
		if err != nil {
			if errors.Is(err, narrow.ErrUnknownUser) || errors.Is(err, ErrUnknownSender) {
				// Best effort: one unresolvable participant must not
				// wedge the event queue.
				n.log.Warn().
					Int64("message_id", ev.Message.ID).
					Err(err).
					Msg("dropping message with unresolvable participant")
				return nil, nil
			}
			return nil, err
		}
		return MessageReceived{Message: msg}, nil

	case models.EventTypeDelete:
		return MessagesDeleted{MessageIDs: ev.MessageIDs}, nil

	case models.EventTypeUpdateFlags:
		return FlagsChanged{
			Flag:       ev.Flag,
			Op:         ev.Op,
			MessageIDs: ev.Messages,
			All:        ev.All,
		}, nil

	case models.EventTypeHeartbeat:
		return Heartbeat{}, nil

	case models.EventTypeReaction:
		// Reactions never change unread or conversation state.
		return nil, nil

	default:
		n.log.Debug().Str("type", string(ev.Type)).Msg("ignoring unknown event type")
		return nil, nil
	}
}

// NormalizeMessage resolves a wire message into the canonical ID-keyed
// form.
func (n *Normalizer) NormalizeMessage(w *models.WireMessage) (models.Message, error) {
	msg := models.Message{
		ID:        w.ID,
		Type:      w.Type,
		SenderID:  w.SenderID,
		Content:   w.Content,
		Timestamp: time.Unix(w.Timestamp, 0),
		Flags:     w.Flags,
	}

	if msg.SenderID <= 0 {
		u, ok := n.dir.ByEmail(w.SenderEmail)
		if !ok {
			return models.Message{}, fmt.Errorf("%w: %q", ErrUnknownSender, w.SenderEmail)
		}
		msg.SenderID = u.ID
	}

	switch w.Type {
	case models.MessageTypeStream:
		msg.StreamID = w.StreamID
		msg.Topic = w.Subject
		return msg, nil

	case models.MessageTypePrivate:
		wire, err := w.PmRecipients()
		if err != nil {
			return models.Message{}, err
		}
		recipients := make([]models.PmRecipient, 0, len(wire))
		for _, r := range wire {
			resolved, err := n.resolveRecipient(r)
			if err != nil {
				return models.Message{}, err
			}
			recipients = append(recipients, resolved)
		}
		msg.Recipients = recipients
		return msg, nil

	default:
		return models.Message{}, fmt.Errorf("%w: message type %q", ErrMalformedEvent, w.Type)
	}
}

func (n *Normalizer) resolveRecipient(r models.WireRecipient) (models.PmRecipient, error) {
	if r.ID > 0 {
		return models.PmRecipient{ID: r.ID, Email: r.Email, FullName: r.FullName}, nil
	}
	u, ok := n.dir.ByEmail(r.Email)
	if !ok {
		return models.PmRecipient{}, fmt.Errorf("%w: %q", narrow.ErrUnknownUser, r.Email)
	}
	return models.PmRecipient{ID: u.ID, Email: u.Email, FullName: u.FullName}, nil
}

// NormalizeSnapshot converts a registration payload into the normalized
// session snapshot. Group-conversation unread keys arrive
// self-inclusive and are rewritten into key-recipient form here, so the
// unread index and the summarizer share one key space.
func NormalizeSnapshot(p *models.RegisterPayload) (Snapshot, error) {
	if p == nil {
		return Snapshot{}, fmt.Errorf("%w: register event without payload", ErrMalformedEvent)
	}
	if p.OwnUserID <= 0 {
		return Snapshot{}, fmt.Errorf("%w: register payload without own user id", ErrMalformedEvent)
	}

	log := logging.Component("events")
	snap := Snapshot{
		QueueID:       p.QueueID,
		OwnUserID:     p.OwnUserID,
		ServerVersion: p.ServerVersion,
		Capabilities:  p.ServerCapabilities,
		Directory:     models.NewDirectory(p.Users),
		Streams:       p.Streams,
		Mutes:         models.NewMuteSet(p.MutedTopics),
	}

	for _, b := range p.UnreadMsgs.Streams {
		snap.Unreads.Streams = append(snap.Unreads.Streams, unread.StreamBucket{
			StreamID:   b.StreamID,
			Topic:      b.Topic,
			MessageIDs: b.UnreadMessageIDs,
		})
	}
	for _, b := range p.UnreadMsgs.Pms {
		snap.Unreads.Pms = append(snap.Unreads.Pms, unread.PmBucket{
			SenderID:   b.SenderID,
			MessageIDs: b.UnreadMessageIDs,
		})
	}
	for _, b := range p.UnreadMsgs.Huddles {
		ids, err := narrow.ParseUserIDsKey(b.UserIDsString)
		if err != nil {
			log.Warn().Str("user_ids", b.UserIDsString).Err(err).
				Msg("dropping unread group entry with malformed key")
			continue
		}
		snap.Unreads.Huddles = append(snap.Unreads.Huddles, unread.HuddleBucket{
			Key:        narrow.UserIDsKey(narrow.KeyRecipientIDs(ids, p.OwnUserID)),
			MessageIDs: b.UnreadMessageIDs,
		})
	}
	snap.Unreads.Mentions = p.UnreadMsgs.Mentions

	for _, rc := range p.RecentPrivateConversations {
		userIDs := rc.UserIDs
		if len(userIDs) == 0 {
			// The self-1:1 conversation is sent with an empty list.
			userIDs = []int64{p.OwnUserID}
		}
		snap.Recents = append(snap.Recents, RecentConversation{
			MaxMessageID: rc.MaxMessageID,
			UserIDs:      userIDs,
		})
	}

	return snap, nil
}
