package telegram

import (
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/usecases"
	"github.com/0xcro3dile/amplon-searchbot/internal/render"
)

type posted struct {
	messageID int
	text      string
}

// relay mirrors bot replies of one session into one chat.
// Messages present when the relay is created are not posted.
type relay struct {
	chatID      int64
	sess        *usecases.Session
	s           sender
	logger      *slog.Logger
	unsubscribe func()

	mu      sync.Mutex
	lastSeq uint64
	seen    map[string]bool    // message IDs present at creation
	posted  map[string]*posted // session message ID -> telegram message
}

func newRelay(chatID int64, sess *usecases.Session, s sender, logger *slog.Logger) *relay {
	r := &relay{
		chatID:      chatID,
		sess:        sess,
		s:           s,
		logger:      logger,
		unsubscribe: func() {},
		seen:        make(map[string]bool),
		posted:      make(map[string]*posted),
	}
	snap := sess.Snapshot()
	r.lastSeq = snap.Seq
	for _, m := range snap.Messages {
		r.seen[m.ID] = true
	}
	return r
}

// SessionChanged implements ports.SessionObserver.
// Snapshots older than the last one handled are ignored.
func (r *relay) SessionChanged(snap entities.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.Seq < r.lastSeq {
		return
	}
	r.lastSeq = snap.Seq
	view := render.Build(snap)

	for _, b := range view.Bubbles {
		if b.Role != string(entities.RoleBot) || r.seen[b.ID] {
			continue
		}
		text := render.BubbleText(b)

		p, ok := r.posted[b.ID]
		if !ok {
			sent, err := r.s.Send(tgbotapi.NewMessage(r.chatID, text))
			if err != nil {
				r.logger.Warn("telegram send failed", slog.Int64("chat", r.chatID), slog.Any("error", err))
				continue
			}
			r.posted[b.ID] = &posted{messageID: sent.MessageID, text: text}
			continue
		}
		if p.text == text {
			continue
		}

		edit := tgbotapi.NewEditMessageText(r.chatID, p.messageID, text)
		if _, err := r.s.Send(edit); err != nil {
			r.logger.Warn("telegram edit failed", slog.Int64("chat", r.chatID), slog.Any("error", err))
			continue
		}
		p.text = text
	}
}
