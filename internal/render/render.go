// Package render turns a session snapshot into a view tree.
// Everything here is a pure function of its input; front-ends only lay the tree out.
package render

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
)

// Align is the side of the transcript a bubble sits on.
type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

const (
	Title            = "Amplon Search Bot"
	InputPlaceholder = "Ask me about YouTube or PDFs..."
	LoadingText      = "Loading…"
	SendLabel        = "Send"
	BusySendLabel    = "Searching…"
	ViewPDFLabel     = "View PDF →"
)

// View is the whole widget. Version is the snapshot Seq it was built from;
// a client holding a higher Version already shows newer state.
type View struct {
	SessionID     string   `json:"session_id"`
	Version       uint64   `json:"version"`
	Title         string   `json:"title"`
	Bubbles       []Bubble `json:"bubbles"`
	Busy          bool     `json:"busy"`
	InputDisabled bool     `json:"input_disabled"`
	SendLabel     string   `json:"send_label"`
	Placeholder   string   `json:"placeholder"`
}

// Bubble is one rendered message.
type Bubble struct {
	ID      string      `json:"id"`
	Role    string      `json:"role"`
	Align   Align       `json:"align"`
	Text    string      `json:"text"`
	Loading string      `json:"loading,omitempty"`
	Videos  []VideoCard `json:"videos,omitempty"`
	Docs    []DocCard   `json:"docs,omitempty"`
}

// VideoCard is an embedded player plus a deep link.
type VideoCard struct {
	EmbedURL   string `json:"embed_url"`
	Caption    string `json:"caption"`
	WatchURL   string `json:"watch_url"`
	WatchLabel string `json:"watch_label"`
}

// DocCard is a filename/page line plus a view link.
type DocCard struct {
	Line  string `json:"line"`
	Link  string `json:"link"`
	Label string `json:"label"`
}

// Build renders snap. User bubbles go right, bot bubbles left.
func Build(snap entities.Snapshot) View {
	v := View{
		SessionID:     snap.SessionID,
		Version:       snap.Seq,
		Title:         Title,
		Bubbles:       make([]Bubble, 0, len(snap.Messages)),
		Busy:          snap.Busy,
		InputDisabled: snap.Busy,
		SendLabel:     SendLabel,
		Placeholder:   InputPlaceholder,
	}
	if snap.Busy {
		v.SendLabel = BusySendLabel
	}
	for _, m := range snap.Messages {
		v.Bubbles = append(v.Bubbles, buildBubble(m))
	}
	return v
}

func buildBubble(m entities.Message) Bubble {
	b := Bubble{
		ID:    m.ID,
		Role:  string(m.Role),
		Align: AlignLeft,
		Text:  m.Text,
	}
	if m.Role == entities.RoleUser {
		b.Align = AlignRight
	}
	if m.Pending {
		b.Loading = LoadingText
	}
	for _, h := range m.VideoHits {
		b.Videos = append(b.Videos, VideoCard{
			EmbedURL:   h.EmbedURL(),
			Caption:    h.Caption,
			WatchURL:   h.WatchURL(),
			WatchLabel: "Watch from " + FormatTime(h.StartSeconds),
		})
	}
	for _, h := range m.DocHits {
		b.Docs = append(b.Docs, DocCard{
			Line:  fmt.Sprintf("%s – page %d", h.Filename, h.Page),
			Link:  h.Link,
			Label: ViewPDFLabel,
		})
	}
	return b
}

// FormatTime renders seconds as m:ss. There is no hour component,
// so 3661 renders as "61:01". Negative input renders as "0:00".
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// BubbleText renders a bubble as plain text lines, links spelled out.
func BubbleText(b Bubble) string {
	var sb strings.Builder
	sb.WriteString(b.Text)
	for _, v := range b.Videos {
		sb.WriteString("\n\n▶️ ")
		sb.WriteString(v.Caption)
		sb.WriteString("\n   ")
		sb.WriteString(v.WatchLabel)
		sb.WriteString(": ")
		sb.WriteString(v.WatchURL)
	}
	for _, d := range b.Docs {
		sb.WriteString("\n\n📄 ")
		sb.WriteString(d.Line)
		if d.Link != "" {
			sb.WriteString("\n   ")
			sb.WriteString(d.Label)
			sb.WriteString(" ")
			sb.WriteString(d.Link)
		}
	}
	if b.Loading != "" {
		sb.WriteString("\n")
		sb.WriteString(b.Loading)
	}
	return sb.String()
}

// PlainText renders the whole transcript, one bubble per paragraph.
func PlainText(v View) string {
	parts := make([]string, 0, len(v.Bubbles))
	for _, b := range v.Bubbles {
		prefix := "bot> "
		if b.Align == AlignRight {
			prefix = "you> "
		}
		parts = append(parts, prefix+BubbleText(b))
	}
	return strings.Join(parts, "\n\n")
}
