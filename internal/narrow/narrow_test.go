package narrow

import (
	"errors"
	"testing"
)

func mustPm(t *testing.T, ids ...int64) Pm {
	t.Helper()
	pm, err := NewPm(ids...)
	if err != nil {
		t.Fatalf("NewPm(%v): %v", ids, err)
	}
	return pm
}

func TestKeyInjectivity(t *testing.T) {
	identities := []Identity{
		Stream{StreamID: 3},
		Stream{StreamID: 30},
		Topic{StreamID: 3, Topic: "x"},
		Topic{StreamID: 3, Topic: "y"},
		Topic{StreamID: 30, Topic: "x"},
		mustPm(t, 5, 7),
		mustPm(t, 5, 8),
		mustPm(t, 5),
		AllMessages{},
		Starred{},
		Mentioned{},
		AllPms{},
		Search{Query: "quick"},
		Search{Query: "brown"},
	}

	seen := make(map[string]Identity, len(identities))
	for _, id := range identities {
		key := id.Key()
		if prev, ok := seen[key]; ok {
			t.Fatalf("key collision: %#v and %#v both produce %q", prev, id, key)
		}
		seen[key] = id
	}
}

func TestPmKeyOrderIndependent(t *testing.T) {
	a := mustPm(t, 7, 5)
	b := mustPm(t, 5, 7)
	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys, got %q vs %q", a.Key(), b.Key())
	}
	c := mustPm(t, 5, 7, 7, 5)
	if c.Key() != a.Key() {
		t.Fatalf("duplicates should collapse: %q vs %q", c.Key(), a.Key())
	}
}

func TestNewPmRejectsEmpty(t *testing.T) {
	if _, err := NewPm(); !errors.Is(err, ErrEmptyPm) {
		t.Fatalf("expected ErrEmptyPm, got %v", err)
	}
}

func TestKeyRecipientIDs(t *testing.T) {
	const own = int64(10)

	// Self-1:1: the own user stays.
	got := KeyRecipientIDs([]int64{own}, own)
	if len(got) != 1 || got[0] != own {
		t.Fatalf("self conversation: got %v", got)
	}

	// 1:1 with another user: own user excluded.
	got = KeyRecipientIDs([]int64{own, 42}, own)
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("1:1 conversation: got %v", got)
	}

	// Group: own user excluded, rest sorted.
	got = KeyRecipientIDs([]int64{42, own, 17}, own)
	if len(got) != 2 || got[0] != 17 || got[1] != 42 {
		t.Fatalf("group conversation: got %v", got)
	}
}

func TestUserIDsKey(t *testing.T) {
	if key := UserIDsKey([]int64{7, 5}); key != "5,7" {
		t.Fatalf("expected 5,7, got %q", key)
	}
	if key := UserIDsKey([]int64{5}); key != "5" {
		t.Fatalf("expected 5, got %q", key)
	}
}

func TestParseUserIDsKeyRoundTrip(t *testing.T) {
	ids, err := ParseUserIDsKey("5,7,12")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if UserIDsKey(ids) != "5,7,12" {
		t.Fatalf("round trip mismatch: %v", ids)
	}
	if _, err := ParseUserIDsKey("5,x"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

type staticResolver struct {
	users   map[string]int64
	streams map[string]int64
}

func (r staticResolver) UserIDByEmail(email string) (int64, bool) {
	id, ok := r.users[email]
	return id, ok
}

func (r staticResolver) StreamIDByName(name string) (int64, bool) {
	id, ok := r.streams[name]
	return id, ok
}

func TestClassifyShapes(t *testing.T) {
	res := staticResolver{
		users:   map[string]int64{"john@example.com": 5, "mark@example.com": 7},
		streams: map[string]int64{"general": 3},
	}

	cases := []struct {
		name    string
		clauses []Clause
		want    Identity
	}{
		{"home", nil, AllMessages{}},
		{"starred", []Clause{{OpIs, "starred"}}, Starred{}},
		{"mentioned", []Clause{{OpIs, "mentioned"}}, Mentioned{}},
		{"all pms", []Clause{{OpIs, "private"}}, AllPms{}},
		{"stream by id", []Clause{{OpStream, "3"}}, Stream{StreamID: 3}},
		{"stream by name", []Clause{{OpStream, "general"}}, Stream{StreamID: 3}},
		{"topic", []Clause{{OpStream, "3"}, {OpTopic, "alpha"}}, Topic{StreamID: 3, Topic: "alpha"}},
		{"pm by email", []Clause{{OpPmWith, "john@example.com"}}, mustPm(t, 5)},
		{"group pm mixed", []Clause{{OpPmWith, "john@example.com,7"}}, mustPm(t, 5, 7)},
		{"search", []Clause{{OpSearch, "quick fox"}}, Search{Query: "quick fox"}},
	}

	for _, tc := range cases {
		got, err := Classify(tc.clauses, res)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got.Key() != tc.want.Key() {
			t.Fatalf("%s: got %q, want %q", tc.name, got.Key(), tc.want.Key())
		}
	}
}

func TestClassifyRejectsUnknownShapes(t *testing.T) {
	cases := [][]Clause{
		{{OpIs, "unicorns"}},
		{{Operator: "near", Operand: "1"}},
		{{OpTopic, "alpha"}, {OpStream, "3"}},
		{{OpStream, "3"}, {OpTopic, "a"}, {OpSearch, "x"}},
	}
	for i, clauses := range cases {
		if _, err := Classify(clauses, nil); !errors.Is(err, ErrInvalidNarrow) {
			t.Fatalf("case %d: expected ErrInvalidNarrow, got %v", i, err)
		}
	}
}

func TestClassifyUnknownUser(t *testing.T) {
	_, err := Classify([]Clause{{OpPmWith, "nobody@example.com"}}, staticResolver{})
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestClauseRoundTrip(t *testing.T) {
	identities := []Identity{
		AllMessages{},
		Starred{},
		Mentioned{},
		AllPms{},
		Stream{StreamID: 3},
		Topic{StreamID: 3, Topic: "alpha"},
		mustPm(t, 5),
		mustPm(t, 5, 7),
		Search{Query: "quick fox"},
	}
	for _, id := range identities {
		got, err := Classify(Clauses(id), nil)
		if err != nil {
			t.Fatalf("%q: %v", id.Key(), err)
		}
		if got.Key() != id.Key() {
			t.Fatalf("round trip changed identity: %q -> %q", id.Key(), got.Key())
		}
	}
}

func TestFromMessage(t *testing.T) {
	id, err := FromMessage(3, "alpha", nil, 10, false)
	if err != nil {
		t.Fatalf("topic message: %v", err)
	}
	if id.Key() != "topic:3:alpha" {
		t.Fatalf("topic message: got %q", id.Key())
	}

	id, err = FromMessage(0, "", []int64{10, 42}, 10, true)
	if err != nil {
		t.Fatalf("pm message: %v", err)
	}
	if id.Key() != "pm:42" {
		t.Fatalf("pm message: got %q", id.Key())
	}
}
