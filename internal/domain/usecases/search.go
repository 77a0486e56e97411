// Package usecases - search.go turns one user query into two backend searches and one session update.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/ports"
)

const (
	// PendingText is shown in the bot bubble while a search is in flight.
	PendingText = "Searching…"

	// FailureText replaces the pending bubble when either search fails.
	FailureText = "❌ Search failed. Try again."
)

var (
	// ErrEmptyQuery is returned when the trimmed query is empty. Nothing was changed.
	ErrEmptyQuery = errors.New("empty query")

	// ErrBusy is returned when the session already has a submission in flight. Nothing was changed.
	ErrBusy = errors.New("search already in progress")
)

// ResultsHeader is the text of a successful bot reply.
func ResultsHeader(query string) string {
	return `Here are the results for "` + query + `":`
}

// SearchUseCase handles submission of a query into a session.
// Single Responsibility: Only the search flow, no rendering.
type SearchUseCase struct {
	search ports.SearchService
	logger *slog.Logger
}

// NewSearchUseCase creates a SearchUseCase with injected dependencies.
func NewSearchUseCase(search ports.SearchService, logger *slog.Logger) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{search: search, logger: logger}
}

// Submit appends the user query and a pending bot reply to the session, runs
// both searches concurrently and finalises the reply once both have settled.
// It blocks until the reply is final. Search failures are not returned: they
// surface only as FailureText in the transcript. ErrEmptyQuery and ErrBusy
// mean the call was ignored.
func (uc *SearchUseCase) Submit(ctx context.Context, sess *Session, query string) error {
	done, err := uc.Start(ctx, sess, query)
	if err != nil {
		return err
	}
	<-done
	return nil
}

// Start is Submit without the wait: the user message and the pending reply are
// in the transcript when it returns, and done is closed once the reply is final
// and the session is idle again.
func (uc *SearchUseCase) Start(ctx context.Context, sess *Session, query string) (done <-chan struct{}, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if !sess.tryAcquire() {
		return nil, ErrBusy
	}

	sess.Append(entities.Message{Role: entities.RoleUser, Text: query})
	botID := sess.Append(entities.Message{Role: entities.RoleBot, Text: PendingText, Pending: true})

	log := uc.logger.With(slog.String("session", sess.ID()), slog.String("query", query))
	log.Debug("search submitted")

	ch := make(chan struct{})
	// In-flight submissions cannot be cancelled.
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(ch)
		defer sess.release()
		uc.run(ctx, log, sess, botID, query)
	}()
	return ch, nil
}

func (uc *SearchUseCase) run(ctx context.Context, log *slog.Logger, sess *Session, botID, query string) {
	videos, docs, err := uc.searchBoth(ctx, query)

	done := false
	if err != nil {
		log.Warn("search failed", slog.Any("error", err))
		text := FailureText
		uc.finish(log, sess, botID, entities.Patch{Text: &text, Pending: &done})
		return
	}

	log.Info("search completed", slog.Int("videos", len(videos)), slog.Int("docs", len(docs)))
	text := ResultsHeader(query)
	uc.finish(log, sess, botID, entities.Patch{
		Text:      &text,
		Pending:   &done,
		VideoHits: &videos,
		DocHits:   &docs,
	})
}

func (uc *SearchUseCase) finish(log *slog.Logger, sess *Session, botID string, patch entities.Patch) {
	if err := sess.Update(botID, patch); err != nil {
		log.Error("pending reply vanished", slog.String("message", botID), slog.Any("error", err))
	}
}

// SubmitDraft submits the session's current input field contents.
func (uc *SearchUseCase) SubmitDraft(ctx context.Context, sess *Session) error {
	return uc.Submit(ctx, sess, sess.Draft())
}

// searchBoth waits for both searches to settle. Any failure fails the pair.
func (uc *SearchUseCase) searchBoth(ctx context.Context, query string) ([]entities.VideoHit, []entities.DocHit, error) {
	var (
		videos []entities.VideoHit
		docs   []entities.DocHit
		g      errgroup.Group
	)

	g.Go(func() error {
		res, err := uc.search.SearchVideos(ctx, query)
		if err != nil {
			return fmt.Errorf("video search: %w", err)
		}
		videos = res
		return nil
	})
	g.Go(func() error {
		res, err := uc.search.SearchDocuments(ctx, query)
		if err != nil {
			return fmt.Errorf("document search: %w", err)
		}
		docs = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if videos == nil {
		videos = []entities.VideoHit{}
	}
	if docs == nil {
		docs = []entities.DocHit{}
	}
	return videos, docs, nil
}
