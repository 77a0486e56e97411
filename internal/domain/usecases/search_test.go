package usecases

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
)

// mockSearch implements ports.SearchService for testing
type mockSearch struct {
	videos   []entities.VideoHit
	docs     []entities.DocHit
	videoErr error
	docErr   error

	// gate, when set, blocks both searches until closed.
	gate     chan struct{}
	started  sync.WaitGroup
	inFlight atomic.Int32
	maxPar   atomic.Int32
	queries  []string
	mu       sync.Mutex
}

func (m *mockSearch) enter(query string) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	n := m.inFlight.Add(1)
	for {
		cur := m.maxPar.Load()
		if n <= cur || m.maxPar.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.gate != nil {
		m.started.Done()
		<-m.gate
	}
}

func (m *mockSearch) SearchVideos(ctx context.Context, query string) ([]entities.VideoHit, error) {
	m.enter(query)
	defer m.inFlight.Add(-1)
	return m.videos, m.videoErr
}

func (m *mockSearch) SearchDocuments(ctx context.Context, query string) ([]entities.DocHit, error) {
	m.enter(query)
	defer m.inFlight.Add(-1)
	return m.docs, m.docErr
}

func gated() *mockSearch {
	m := &mockSearch{gate: make(chan struct{})}
	m.started.Add(2)
	return m
}

func TestSearchUseCase_CatsScenario(t *testing.T) {
	search := &mockSearch{
		videos: []entities.VideoHit{{VideoID: "abc", StartSeconds: 75, Caption: "t", Link: "l"}},
		docs:   []entities.DocHit{{Filename: "f.pdf", Page: 3, Link: "l2"}},
	}
	uc := NewSearchUseCase(search, nil)
	sess := NewSession("")

	require.NoError(t, uc.Submit(context.Background(), sess, "cats"))

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, entities.RoleUser, msgs[0].Role)
	assert.Equal(t, "cats", msgs[0].Text)

	bot := msgs[1]
	assert.Equal(t, entities.RoleBot, bot.Role)
	assert.Equal(t, `Here are the results for "cats":`, bot.Text)
	assert.False(t, bot.Pending)
	require.Len(t, bot.VideoHits, 1)
	assert.Equal(t, 75, bot.VideoHits[0].StartSeconds)
	require.Len(t, bot.DocHits, 1)
	assert.Equal(t, 3, bot.DocHits[0].Page)
	assert.False(t, sess.Busy())
}

func TestSearchUseCase_TrimsQuery(t *testing.T) {
	search := &mockSearch{}
	uc := NewSearchUseCase(search, nil)
	sess := NewSession("")

	require.NoError(t, uc.Submit(context.Background(), sess, "  dogs \n"))

	assert.Equal(t, "dogs", sess.Messages()[0].Text)
	assert.Equal(t, []string{"dogs", "dogs"}, search.queries)
}

func TestSearchUseCase_EmptyResultsAreStillSuccess(t *testing.T) {
	uc := NewSearchUseCase(&mockSearch{}, nil)
	sess := NewSession("")

	require.NoError(t, uc.Submit(context.Background(), sess, "nothing"))

	bot := sess.Messages()[1]
	assert.Equal(t, ResultsHeader("nothing"), bot.Text)
	assert.NotNil(t, bot.VideoHits)
	assert.Empty(t, bot.VideoHits)
	assert.NotNil(t, bot.DocHits)
	assert.Empty(t, bot.DocHits)
}

func TestSearchUseCase_EmptyQueryIsNoop(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		search := &mockSearch{}
		uc := NewSearchUseCase(search, nil)
		sess := NewSession(DefaultWelcome)
		before := sess.Snapshot()

		err := uc.Submit(context.Background(), sess, q)

		assert.ErrorIs(t, err, ErrEmptyQuery)
		assert.Equal(t, before, sess.Snapshot())
		assert.Empty(t, search.queries)
	}
}

func TestSearchUseCase_EitherFailureIsTotalFailure(t *testing.T) {
	boom := errors.New("HTTP 500")
	cases := map[string]*mockSearch{
		"video fails": {videoErr: boom, docs: []entities.DocHit{{Filename: "f.pdf", Page: 1}}},
		"docs fail":   {docErr: boom, videos: []entities.VideoHit{{VideoID: "abc"}}},
		"both fail":   {videoErr: boom, docErr: boom},
	}

	for name, search := range cases {
		t.Run(name, func(t *testing.T) {
			uc := NewSearchUseCase(search, nil)
			sess := NewSession("")
			sess.SetDraft("cats")

			require.NoError(t, uc.SubmitDraft(context.Background(), sess))

			bot := sess.Messages()[1]
			assert.Equal(t, FailureText, bot.Text)
			assert.False(t, bot.Pending)
			assert.Nil(t, bot.VideoHits)
			assert.Nil(t, bot.DocHits)
			assert.False(t, sess.Busy())
			assert.Empty(t, sess.Draft())
		})
	}
}

func TestSearchUseCase_MessagesAppendedBeforeNetworkCompletes(t *testing.T) {
	search := gated()
	uc := NewSearchUseCase(search, nil)
	sess := NewSession("")

	done := make(chan error, 1)
	go func() { done <- uc.Submit(context.Background(), sess, "cats") }()

	search.started.Wait()

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, entities.RoleUser, msgs[0].Role)
	assert.Equal(t, entities.RoleBot, msgs[1].Role)
	assert.Equal(t, PendingText, msgs[1].Text)
	assert.True(t, msgs[1].Pending)
	assert.True(t, sess.Busy())
	assert.EqualValues(t, 2, search.maxPar.Load(), "searches should run in parallel")

	close(search.gate)
	require.NoError(t, <-done)
	assert.False(t, sess.Messages()[1].Pending)
}

func TestSearchUseCase_BusyRejectsSecondSubmit(t *testing.T) {
	search := gated()
	uc := NewSearchUseCase(search, nil)
	sess := NewSession("")

	done := make(chan error, 1)
	go func() { done <- uc.Submit(context.Background(), sess, "first") }()
	search.started.Wait()

	err := uc.Submit(context.Background(), sess, "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, sess.Messages(), 2)

	close(search.gate)
	require.NoError(t, <-done)

	search.gate = nil
	require.NoError(t, uc.Submit(context.Background(), sess, "third"))
	assert.Len(t, sess.Messages(), 4)
}

func TestSearchUseCase_CallerCancellationDoesNotAbortSearch(t *testing.T) {
	search := gated()
	search.videos = []entities.VideoHit{{VideoID: "abc"}}
	uc := NewSearchUseCase(search, nil)
	sess := NewSession("")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- uc.Submit(ctx, sess, "cats") }()
	search.started.Wait()

	cancel()
	time.Sleep(10 * time.Millisecond)
	close(search.gate)
	require.NoError(t, <-done)

	bot := sess.Messages()[1]
	assert.Equal(t, ResultsHeader("cats"), bot.Text)
	assert.Len(t, bot.VideoHits, 1)
}

func TestResultsHeader_KeepsQuotesLiteral(t *testing.T) {
	assert.Equal(t, `Here are the results for "say "hi"":`, ResultsHeader(`say "hi"`))
}

func TestSearchUseCase_StartReturnsBeforeSearchSettles(t *testing.T) {
	search := gated()
	uc := NewSearchUseCase(search, nil)
	sess := NewSession("")

	done, err := uc.Start(context.Background(), sess, "cats")
	require.NoError(t, err)

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Pending)
	assert.True(t, sess.Busy())

	_, err = uc.Start(context.Background(), sess, "dogs")
	assert.ErrorIs(t, err, ErrBusy)

	close(search.gate)
	<-done
	assert.False(t, sess.Busy())
	assert.Equal(t, ResultsHeader("cats"), sess.Messages()[1].Text)
}
