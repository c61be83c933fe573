package transport

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/talonchat/talon/internal/models"
)

func TestDecodeEnvelopeMessage(t *testing.T) {
	data := []byte(`{
		"id": 42,
		"type": "message",
		"message": {
			"id": 101,
			"type": "stream",
			"sender_id": 5,
			"stream_id": 3,
			"subject": "alpha",
			"display_recipient": "general",
			"content": "hi",
			"timestamp": 1700000000
		}
	}`)

	ev, err := decodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.ID != 42 || ev.Type != models.EventTypeMessage {
		t.Fatalf("envelope: %+v", ev)
	}
	if ev.Message == nil || ev.Message.ID != 101 || ev.Message.Subject != "alpha" {
		t.Fatalf("message payload: %+v", ev.Message)
	}
	name, err := ev.Message.StreamName()
	if err != nil || name != "general" {
		t.Fatalf("stream name: %q, %v", name, err)
	}
}

func TestDecodeEnvelopeFlags(t *testing.T) {
	data := []byte(`{
		"id": 43,
		"type": "update_message_flags",
		"flag": "read",
		"op": "add",
		"messages": [101, 102]
	}`)

	ev, err := decodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Flag != models.FlagRead || ev.Op != models.FlagOpAdd || len(ev.Messages) != 2 {
		t.Fatalf("flags payload: %+v", ev)
	}
}

func TestDecodeEnvelopeRegister(t *testing.T) {
	data := []byte(`{
		"id": 0,
		"type": "register",
		"data": {
			"queue_id": "q-9",
			"own_user_id": 10,
			"users": [{"user_id": 10, "email": "me@example.com"}],
			"unread_msgs": {
				"streams": [{"stream_id": 3, "topic": "alpha", "unread_message_ids": [101]}],
				"pms": [],
				"huddles": [{"user_ids_string": "5,7,10", "unread_message_ids": [170]}],
				"mentions": []
			}
		}
	}`)

	ev, err := decodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Register == nil || ev.Register.QueueID != "q-9" || ev.Register.OwnUserID != 10 {
		t.Fatalf("register payload: %+v", ev.Register)
	}
	if len(ev.Register.UnreadMsgs.Huddles) != 1 {
		t.Fatalf("unread payload: %+v", ev.Register.UnreadMsgs)
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := decodeEnvelope([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := decodeEnvelope([]byte(`{"id": 1}`)); err == nil {
		t.Fatalf("expected missing-type error")
	}
}

func TestWireURL(t *testing.T) {
	got, err := wireURL("https://chat.example.com", "c-1", "", -1)
	if err != nil {
		t.Fatalf("wireURL: %v", err)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if u.Scheme != "wss" || u.Path != "/api/v1/events" {
		t.Fatalf("got %q", got)
	}
	if u.Query().Get("client_id") != "c-1" || u.Query().Has("queue_id") {
		t.Fatalf("query: %q", u.RawQuery)
	}
}

func TestWireURLResume(t *testing.T) {
	got, err := wireURL("http://localhost:9991", "c-1", "q-9", 77)
	if err != nil {
		t.Fatalf("wireURL: %v", err)
	}
	u, _ := url.Parse(got)
	if u.Scheme != "ws" {
		t.Fatalf("scheme: %q", u.Scheme)
	}
	if u.Query().Get("queue_id") != "q-9" || u.Query().Get("last_event_id") != "77" {
		t.Fatalf("resume params: %q", u.RawQuery)
	}
}

func TestWireURLRejectsBadSchemes(t *testing.T) {
	for _, raw := range []string{"ftp://x", "chat.example.com", "://"} {
		if _, err := wireURL(raw, "", "", -1); !errors.Is(err, ErrBadServerURL) {
			t.Fatalf("%q: expected ErrBadServerURL, got %v", raw, err)
		}
	}
}

func TestNextBackoff(t *testing.T) {
	max := 2 * time.Minute
	b := initialBackoff
	var seen []time.Duration
	for i := 0; i < 10; i++ {
		seen = append(seen, b)
		b = nextBackoff(b, max)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("backoff not monotonic: %v", seen)
		}
		if seen[i] > max {
			t.Fatalf("backoff exceeds cap: %v", seen)
		}
	}
	if seen[len(seen)-1] != max {
		t.Fatalf("backoff should reach the cap: %v", seen)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{ServerURL: "ftp://x"}, func(models.WireEvent) {}); err == nil {
		t.Fatalf("expected bad-url error")
	}
	if _, err := New(Config{ServerURL: "https://chat.example.com"}, nil); err == nil {
		t.Fatalf("expected nil-handler error")
	}
}
