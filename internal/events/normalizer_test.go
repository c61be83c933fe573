package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/talonchat/talon/internal/models"
)

func testDirectory() *models.Directory {
	return models.NewDirectory([]models.User{
		{ID: 10, Email: "me@example.com", FullName: "Me"},
		{ID: 5, Email: "john@example.com", FullName: "John"},
		{ID: 7, Email: "mark@example.com", FullName: "Mark"},
	})
}

func streamWire(id int64, topic string) *models.WireMessage {
	return &models.WireMessage{
		ID:               id,
		Type:             models.MessageTypeStream,
		SenderID:         5,
		StreamID:         3,
		Subject:          topic,
		DisplayRecipient: json.RawMessage(`"general"`),
		Content:          "hi",
		Timestamp:        1700000000,
	}
}

func pmWire(id int64, recipients string) *models.WireMessage {
	return &models.WireMessage{
		ID:               id,
		Type:             models.MessageTypePrivate,
		SenderID:         5,
		DisplayRecipient: json.RawMessage(recipients),
		Content:          "hi",
		Timestamp:        1700000000,
	}
}

func TestNormalizeStreamMessage(t *testing.T) {
	n := NewNormalizer(testDirectory(), 10)

	msg, err := n.NormalizeMessage(streamWire(101, "alpha"))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if msg.StreamID != 3 || msg.Topic != "alpha" || msg.SenderID != 5 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestNormalizePmResolvesEmails(t *testing.T) {
	n := NewNormalizer(testDirectory(), 10)

	// Legacy payload: recipients keyed by email only.
	msg, err := n.NormalizeMessage(pmWire(102,
		`[{"email":"me@example.com"},{"email":"john@example.com"}]`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	ids := msg.ParticipantIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 participants, got %v", ids)
	}
	for _, id := range ids {
		if id != 10 && id != 5 {
			t.Fatalf("unresolved participant in %v", ids)
		}
	}
}

func TestNormalizeResolvesLegacySender(t *testing.T) {
	n := NewNormalizer(testDirectory(), 10)

	w := streamWire(103, "alpha")
	w.SenderID = 0
	w.SenderEmail = "mark@example.com"

	msg, err := n.NormalizeMessage(w)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if msg.SenderID != 7 {
		t.Fatalf("sender = %d, want 7", msg.SenderID)
	}
}

func TestNormalizeDropsUnknownParticipant(t *testing.T) {
	n := NewNormalizer(testDirectory(), 10)

	ev, err := n.Normalize(models.WireEvent{
		Type:    models.EventTypeMessage,
		Message: pmWire(104, `[{"email":"nobody@example.com"}]`),
	})
	if err != nil {
		t.Fatalf("unresolvable participant should be dropped, not fail: %v", err)
	}
	if ev != nil {
		t.Fatalf("expected dropped event, got %+v", ev)
	}
}

func TestNormalizeEnvelopes(t *testing.T) {
	n := NewNormalizer(testDirectory(), 10)

	ev, err := n.Normalize(models.WireEvent{
		Type:       models.EventTypeDelete,
		MessageIDs: []int64{101, 102},
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if del, ok := ev.(MessagesDeleted); !ok || len(del.MessageIDs) != 2 {
		t.Fatalf("delete: got %+v", ev)
	}

	ev, err = n.Normalize(models.WireEvent{
		Type:     models.EventTypeUpdateFlags,
		Flag:     models.FlagRead,
		Op:       models.FlagOpAdd,
		Messages: []int64{101},
	})
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	if fc, ok := ev.(FlagsChanged); !ok || fc.Flag != models.FlagRead || fc.Op != models.FlagOpAdd {
		t.Fatalf("flags: got %+v", ev)
	}

	// Reactions carry nothing for this layer.
	ev, err = n.Normalize(models.WireEvent{Type: models.EventTypeReaction})
	if err != nil || ev != nil {
		t.Fatalf("reaction: got %+v, %v", ev, err)
	}
}

func TestNormalizeMessageEventWithoutPayload(t *testing.T) {
	n := NewNormalizer(testDirectory(), 10)
	if _, err := n.Normalize(models.WireEvent{Type: models.EventTypeMessage}); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestNormalizeSnapshot(t *testing.T) {
	payload := &models.RegisterPayload{
		QueueID:       "q-1",
		OwnUserID:     10,
		ServerVersion: "4.0",
		Users: []models.User{
			{ID: 10, Email: "me@example.com"},
			{ID: 5, Email: "john@example.com"},
		},
		Streams:     []models.Stream{{ID: 3, Name: "general"}},
		MutedTopics: []models.MutedTopic{{StreamID: 3, Topic: "noise"}},
		UnreadMsgs: models.UnreadMsgsWire{
			Streams: []models.UnreadStreamWire{
				{StreamID: 3, Topic: "alpha", UnreadMessageIDs: []int64{101}},
			},
			Pms: []models.UnreadPmWire{
				{SenderID: 5, UnreadMessageIDs: []int64{150}},
			},
			Huddles: []models.UnreadHuddleWire{
				// Self-inclusive wire key: 5,7,10 with own user 10.
				{UserIDsString: "5,7,10", UnreadMessageIDs: []int64{170}},
			},
			Mentions: []int64{101},
		},
	}

	snap, err := NormalizeSnapshot(payload)
	if err != nil {
		t.Fatalf("normalize snapshot: %v", err)
	}

	if snap.OwnUserID != 10 || snap.QueueID != "q-1" {
		t.Fatalf("header fields: %+v", snap)
	}
	if !snap.Mutes.IsMuted(3, "noise") {
		t.Fatalf("mute set not built")
	}
	if len(snap.Unreads.Huddles) != 1 || snap.Unreads.Huddles[0].Key != "5,7" {
		t.Fatalf("huddle key should drop the own user: %+v", snap.Unreads.Huddles)
	}
	if _, ok := snap.Directory.ByEmail("john@example.com"); !ok {
		t.Fatalf("directory not built")
	}
}

func TestNormalizeSnapshotSelfRecent(t *testing.T) {
	payload := &models.RegisterPayload{
		OwnUserID:          10,
		ServerCapabilities: []string{models.CapabilityRecentConversations},
		RecentPrivateConversations: []models.RecentConversationWire{
			{MaxMessageID: 500, UserIDs: []int64{5}},
			{MaxMessageID: 400, UserIDs: nil},
		},
	}

	snap, err := NormalizeSnapshot(payload)
	if err != nil {
		t.Fatalf("normalize snapshot: %v", err)
	}
	if !snap.HasCapability(models.CapabilityRecentConversations) {
		t.Fatalf("capability lost in normalization")
	}
	if len(snap.Recents) != 2 {
		t.Fatalf("expected 2 recents, got %+v", snap.Recents)
	}
	self := snap.Recents[1]
	if len(self.UserIDs) != 1 || self.UserIDs[0] != 10 {
		t.Fatalf("empty user list should become the self conversation: %+v", self)
	}
}

func TestNormalizeSnapshotRejectsMissingOwnUser(t *testing.T) {
	if _, err := NormalizeSnapshot(&models.RegisterPayload{}); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
	if _, err := NormalizeSnapshot(nil); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent for nil payload, got %v", err)
	}
}
