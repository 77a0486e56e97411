// Package telegram serves chat sessions over a Telegram bot.
// Each Telegram chat owns one session; bot replies are sent once and then
// edited in place as the session updates them.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/0xcro3dile/amplon-searchbot/internal/adapters/sessionstore"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/usecases"
)

// BusyReply is sent when a query arrives while the chat's previous search is still running.
const BusyReply = "Still searching, please wait…"

const sweepInterval = time.Minute

type Bot struct {
	api      *tgbotapi.BotAPI
	s        sender
	sessions *sessionstore.InMemoryStore
	search   *usecases.SearchUseCase
	idleTTL  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	relays map[string]*relay // session key -> relay of the chat's current session
}

// NewBot connects to the Bot API with token.
func NewBot(
	token string,
	sessions *sessionstore.InMemoryStore,
	searchUC *usecases.SearchUseCase,
	idleTTL time.Duration,
	logger *slog.Logger,
) (*Bot, error) {
	if token == "" {
		return nil, errors.New("telegram bot token not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = false

	b := newBot(botAPISender{api: api}, sessions, searchUC, idleTTL, logger)
	b.api = api
	return b, nil
}

func newBot(
	s sender,
	sessions *sessionstore.InMemoryStore,
	searchUC *usecases.SearchUseCase,
	idleTTL time.Duration,
	logger *slog.Logger,
) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		s:        s,
		sessions: sessions,
		search:   searchUC,
		idleTTL:  idleTTL,
		logger:   logger,
		relays:   make(map[string]*relay),
	}
	sessions.OnEvict(b.dropRelay)
	return b
}

// Run long-polls for updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil {
		return errors.New("telegram bot not connected")
	}
	b.logger.Info("telegram bot started", slog.String("username", b.api.Self.UserName))

	go b.sessions.RunSweeper(ctx, sweepInterval, b.idleTTL, b.logger)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand() && msg.Command() == "start":
		b.handleStart(chatID)
	case msg.IsCommand():
		b.sendMessage(chatID, "Just send me what you are looking for.")
	case msg.Text != "":
		b.handleQuery(ctx, chatID, msg.Text)
	default:
		b.sendMessage(chatID, "I only understand text messages.")
	}
}

func (b *Bot) handleStart(chatID int64) {
	sess := b.session(chatID)
	msgs := sess.Messages()
	if len(msgs) == 0 {
		b.sendMessage(chatID, usecases.DefaultWelcome)
		return
	}
	b.sendMessage(chatID, msgs[0].Text)
}

func (b *Bot) handleQuery(ctx context.Context, chatID int64, text string) {
	sess := b.session(chatID)
	_, err := b.search.Start(ctx, sess, text)
	switch {
	case errors.Is(err, usecases.ErrBusy):
		b.sendMessage(chatID, BusyReply)
	case errors.Is(err, usecases.ErrEmptyQuery):
	case err != nil:
		b.logger.Error("submit failed", slog.Int64("chat", chatID), slog.Any("error", err))
	}
}

// session returns the chat's session, wiring a relay the first time it is seen.
func (b *Bot) session(chatID int64) *usecases.Session {
	key := sessionKey(chatID)
	sess, _ := b.sessions.GetOrCreate(key)

	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.relays[key]; ok && r.sess == sess {
		return sess
	}
	if old, ok := b.relays[key]; ok {
		old.unsubscribe()
	}
	r := newRelay(chatID, sess, b.s, b.logger)
	r.unsubscribe = sess.Subscribe(r)
	b.relays[key] = r
	return sess
}

// dropRelay forgets the relay of a session the registry has swept.
func (b *Bot) dropRelay(key string, sess *usecases.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.relays[key]
	if !ok || r.sess != sess {
		return
	}
	r.unsubscribe()
	delete(b.relays, key)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("telegram send failed", slog.Int64("chat", chatID), slog.Any("error", err))
	}
}

func sessionKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}
