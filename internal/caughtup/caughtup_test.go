package caughtup

import (
	"testing"

	"github.com/talonchat/talon/internal/models"
)

func page(ids ...int64) []models.Message {
	msgs := make([]models.Message, len(ids))
	for i, id := range ids {
		msgs[i] = models.Message{ID: id}
	}
	return msgs
}

func readPage(firstUnread int64, ids ...int64) []models.Message {
	msgs := page(ids...)
	for i := range msgs {
		if msgs[i].ID < firstUnread {
			msgs[i].Flags = []models.Flag{models.FlagRead}
		}
	}
	return msgs
}

func TestMissingRecordReadsAsUnknown(t *testing.T) {
	rec := Empty().Get("stream:3")
	if rec.Older || rec.Newer {
		t.Fatalf("missing record should read as not caught up, got %+v", rec)
	}
}

func TestNewestAnchorShortPage(t *testing.T) {
	s := Apply(Empty(), Fetch{
		Key:       "stream:3",
		Anchor:    AnchorNewest,
		NumBefore: 10,
		NumAfter:  10,
		Messages:  page(1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
	})

	rec := s.Get("stream:3")
	if !rec.Older {
		t.Fatalf("only 9 messages precede the anchor; older should be true")
	}
	if !rec.Newer {
		t.Fatalf("newest anchor always reaches the newer boundary")
	}
}

func TestNewestAnchorFullPage(t *testing.T) {
	ids := make([]int64, 11)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	s := Apply(Empty(), Fetch{
		Key:       "stream:3",
		Anchor:    AnchorNewest,
		NumBefore: 10,
		NumAfter:  0,
		Messages:  page(ids...),
	})

	rec := s.Get("stream:3")
	if rec.Older {
		t.Fatalf("a full page before the anchor does not prove the older boundary")
	}
	if !rec.Newer {
		t.Fatalf("newest anchor always reaches the newer boundary")
	}
}

func TestExactAnchorBothSides(t *testing.T) {
	// Anchor 5 with 2 before and 2 after, all sides full.
	s := Apply(Empty(), Fetch{
		Key:       "topic:3:alpha",
		Anchor:    5,
		NumBefore: 2,
		NumAfter:  2,
		Messages:  page(3, 4, 5, 6, 7),
	})
	rec := s.Get("topic:3:alpha")
	if rec.Older || rec.Newer {
		t.Fatalf("full pages on both sides: got %+v", rec)
	}

	// Short before the anchor. The anchor message counts toward the
	// after side, so two messages at or past the anchor fill the
	// requested two and prove nothing about the newer boundary.
	s = Apply(Empty(), Fetch{
		Key:       "topic:3:alpha",
		Anchor:    5,
		NumBefore: 2,
		NumAfter:  2,
		Messages:  page(4, 5, 6),
	})
	rec = s.Get("topic:3:alpha")
	if !rec.Older || rec.Newer {
		t.Fatalf("short before, full after: got %+v", rec)
	}

	// Short after the anchor too.
	s = Apply(Empty(), Fetch{
		Key:       "topic:3:alpha",
		Anchor:    5,
		NumBefore: 2,
		NumAfter:  2,
		Messages:  page(4, 5),
	})
	rec = s.Get("topic:3:alpha")
	if !rec.Older || !rec.Newer {
		t.Fatalf("short pages on both sides: got %+v", rec)
	}
}

func TestFirstUnreadAnchor(t *testing.T) {
	// First unread is 5; page starts at the anchor's side with 2 read
	// messages before it and 3 (anchor included) at or after.
	s := Apply(Empty(), Fetch{
		Key:       "topic:3:alpha",
		Anchor:    AnchorFirstUnread,
		NumBefore: 2,
		NumAfter:  3,
		Messages:  readPage(5, 3, 4, 5, 6, 7),
	})
	rec := s.Get("topic:3:alpha")
	if rec.Older || rec.Newer {
		t.Fatalf("full pages around first unread: got %+v", rec)
	}

	// No unread message in the page: the conversation is fully read,
	// which means the page end is the newest.
	s = Apply(Empty(), Fetch{
		Key:       "topic:3:alpha",
		Anchor:    AnchorFirstUnread,
		NumBefore: 10,
		NumAfter:  10,
		Messages:  readPage(100, 3, 4, 5),
	})
	rec = s.Get("topic:3:alpha")
	if !rec.Older || !rec.Newer {
		t.Fatalf("fully read short history: got %+v", rec)
	}
}

func TestRecordsAreMonotonic(t *testing.T) {
	s := Apply(Empty(), Fetch{
		Key:       "stream:3",
		Anchor:    AnchorNewest,
		NumBefore: 10,
		NumAfter:  10,
		Messages:  page(1, 2, 3),
	})
	if rec := s.Get("stream:3"); !rec.Older || !rec.Newer {
		t.Fatalf("setup: %+v", rec)
	}

	// A later fetch that reaches neither boundary must not clear the
	// booleans.
	ids := make([]int64, 21)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	s = Apply(s, Fetch{
		Key:       "stream:3",
		Anchor:    11,
		NumBefore: 10,
		NumAfter:  10,
		Messages:  page(ids...),
	})
	if rec := s.Get("stream:3"); !rec.Older || !rec.Newer {
		t.Fatalf("caught-up booleans regressed: %+v", rec)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := Apply(Empty(), Fetch{Key: "a", Anchor: AnchorNewest, NumBefore: 5, Messages: page(1)})
	before := s.Get("a")

	_ = Apply(s, Fetch{Key: "b", Anchor: AnchorNewest, NumBefore: 5, Messages: page(2)})
	_ = Apply(s, Fetch{Key: "a", Anchor: 1, NumBefore: 0, NumAfter: 5, Messages: page(1)})

	if got := s.Get("a"); got != before {
		t.Fatalf("input state mutated: %+v -> %+v", before, got)
	}
	if s.Get("b") != (Record{}) {
		t.Fatalf("input state gained a record for b")
	}
}

func TestApplyTracksKeysIndependently(t *testing.T) {
	s := Apply(Empty(), Fetch{Key: "stream:3", Anchor: AnchorNewest, NumBefore: 10, Messages: page(1, 2)})
	s = Apply(s, Fetch{Key: "stream:4", Anchor: 50, NumBefore: 1, NumAfter: 1, Messages: page(49, 50, 51)})

	if rec := s.Get("stream:3"); !rec.Older || !rec.Newer {
		t.Fatalf("stream:3: %+v", rec)
	}
	if rec := s.Get("stream:4"); rec.Older || rec.Newer {
		t.Fatalf("stream:4: %+v", rec)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", s.Len())
	}
}
