package entities

import (
	"testing"
	"time"
)

func TestVideoHit_EmbedURL(t *testing.T) {
	hit := VideoHit{VideoID: "NLg7Wa6HmYI", StartSeconds: 75}

	want := "https://www.youtube.com/embed/NLg7Wa6HmYI?start=75"
	if got := hit.EmbedURL(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestVideoHit_WatchURL(t *testing.T) {
	hit := VideoHit{VideoID: "abc", StartSeconds: 12}
	if got := hit.WatchURL(); got != "https://www.youtube.com/watch?v=abc&t=12s" {
		t.Errorf("unexpected fallback link: %s", got)
	}

	hit.Link = "https://example.com/v"
	if got := hit.WatchURL(); got != "https://example.com/v" {
		t.Errorf("backend link should win, got %s", got)
	}
}

func TestPatch_LeavesUnsetFieldsAlone(t *testing.T) {
	msg := Message{
		ID:        "m1",
		Role:      RoleBot,
		Text:      "Searching…",
		CreatedAt: time.Now(),
		Pending:   true,
	}

	text := "done"
	Patch{Text: &text}.Apply(&msg)

	if msg.Text != "done" {
		t.Errorf("expected text to be replaced, got %q", msg.Text)
	}
	if !msg.Pending {
		t.Error("pending should be untouched")
	}
	if msg.VideoHits != nil || msg.DocHits != nil {
		t.Error("hits should be untouched")
	}
}

func TestPatch_EmptyHitsAreSet(t *testing.T) {
	msg := Message{ID: "m1", Role: RoleBot}
	videos := []VideoHit{}
	pending := false

	Patch{VideoHits: &videos, Pending: &pending}.Apply(&msg)

	if msg.VideoHits == nil {
		t.Error("empty video hits should be set, not nil")
	}
	if msg.DocHits != nil {
		t.Error("doc hits were not in the patch")
	}
}

func TestMessage_CloneIsDeep(t *testing.T) {
	orig := Message{ID: "m1", DocHits: []DocHit{{Filename: "f.pdf", Page: 3}}}
	cp := orig.Clone()
	cp.DocHits[0].Page = 9

	if orig.DocHits[0].Page != 3 {
		t.Error("clone shares hit storage with original")
	}
}
