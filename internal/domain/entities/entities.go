// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import (
	"fmt"
	"time"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one chat bubble in a session transcript.
// User messages never carry hits; bot messages may.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at"`
	Pending   bool       `json:"pending"`
	VideoHits []VideoHit `json:"video_hits,omitempty"`
	DocHits   []DocHit   `json:"doc_hits,omitempty"`
}

// VideoHit is a transcript segment of a YouTube video that matched a query.
type VideoHit struct {
	VideoID      string `json:"video_id"`
	StartSeconds int    `json:"start"`
	Caption      string `json:"text"`
	Link         string `json:"link"`
}

// EmbedURL returns the player URL seeked to the segment start.
func (v VideoHit) EmbedURL() string {
	return fmt.Sprintf("https://www.youtube.com/embed/%s?start=%d", v.VideoID, v.StartSeconds)
}

// WatchURL returns the backend-provided link, falling back to the
// watch page with a time offset when the backend sent none.
func (v VideoHit) WatchURL() string {
	if v.Link != "" {
		return v.Link
	}
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s&t=%ds", v.VideoID, v.StartSeconds)
}

// DocHit is a PDF page that matched a query.
type DocHit struct {
	Filename string `json:"filename"`
	Page     int    `json:"page"`
	Link     string `json:"link"`
}

// Patch carries the fields of a Message to overwrite. Nil fields are left untouched.
type Patch struct {
	Text      *string
	Pending   *bool
	VideoHits *[]VideoHit
	DocHits   *[]DocHit
}

// Apply merges the set fields of p into m.
func (p Patch) Apply(m *Message) {
	if p.Text != nil {
		m.Text = *p.Text
	}
	if p.Pending != nil {
		m.Pending = *p.Pending
	}
	if p.VideoHits != nil {
		m.VideoHits = append([]VideoHit{}, (*p.VideoHits)...)
	}
	if p.DocHits != nil {
		m.DocHits = append([]DocHit{}, (*p.DocHits)...)
	}
}

// Snapshot is a point-in-time copy of a session, safe to hand to renderers.
// Seq grows with every mutation; of two snapshots of one session the higher Seq is newer.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Messages  []Message `json:"messages"`
	Busy      bool      `json:"busy"`
	Draft     string    `json:"draft"`
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	if m.VideoHits != nil {
		m.VideoHits = append([]VideoHit{}, m.VideoHits...)
	}
	if m.DocHits != nil {
		m.DocHits = append([]DocHit{}, m.DocHits...)
	}
	return m
}
