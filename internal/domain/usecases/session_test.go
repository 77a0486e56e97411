package usecases

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/ports"
)

func TestSession_SeedsWelcome(t *testing.T) {
	sess := NewSession(DefaultWelcome)

	msgs := sess.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, entities.RoleBot, msgs[0].Role)
	assert.Equal(t, DefaultWelcome, msgs[0].Text)
	assert.False(t, msgs[0].Pending)
}

func TestSession_NoWelcome(t *testing.T) {
	sess := NewSession("")
	assert.Empty(t, sess.Messages())
}

func TestSession_AppendAssignsUniqueIDsInOrder(t *testing.T) {
	sess := NewSession("")

	ids := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := sess.Append(entities.Message{Role: entities.RoleUser, Text: "q"})
		require.NotEmpty(t, id)
		require.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true
	}

	msgs := sess.Messages()
	require.Len(t, msgs, 50)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt), "messages out of order at %d", i)
	}
}

func TestSession_AppendStripsHitsFromUserMessages(t *testing.T) {
	sess := NewSession("")
	sess.Append(entities.Message{
		Role:      entities.RoleUser,
		Text:      "cats",
		VideoHits: []entities.VideoHit{{VideoID: "x"}},
	})

	msgs := sess.Messages()
	assert.Nil(t, msgs[0].VideoHits)
}

func TestSession_UpdateMergesFields(t *testing.T) {
	sess := NewSession("")
	id := sess.Append(entities.Message{Role: entities.RoleBot, Text: PendingText, Pending: true})

	hits := []entities.DocHit{{Filename: "f.pdf", Page: 3, Link: "l2"}}
	require.NoError(t, sess.Update(id, entities.Patch{DocHits: &hits}))

	msg := sess.Messages()[0]
	assert.Equal(t, PendingText, msg.Text)
	assert.True(t, msg.Pending)
	assert.Equal(t, hits, msg.DocHits)
	assert.Nil(t, msg.VideoHits)
}

func TestSession_UpdateUnknownIDChangesNothing(t *testing.T) {
	sess := NewSession(DefaultWelcome)
	sess.Append(entities.Message{Role: entities.RoleUser, Text: "hello"})
	before := sess.Messages()

	text := "overwritten"
	err := sess.Update("does-not-exist", entities.Patch{Text: &text})

	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.Equal(t, before, sess.Messages())
}

func TestSession_MessagesReturnsCopy(t *testing.T) {
	sess := NewSession("")
	sess.Append(entities.Message{Role: entities.RoleUser, Text: "hello"})

	msgs := sess.Messages()
	msgs[0].Text = "mutated"

	assert.Equal(t, "hello", sess.Messages()[0].Text)
}

func TestSession_ObserversSeeEveryMutation(t *testing.T) {
	sess := NewSession("")

	var (
		mu    sync.Mutex
		snaps []entities.Snapshot
	)
	unsubscribe := sess.Subscribe(ports.ObserverFunc(func(s entities.Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	}))

	id := sess.Append(entities.Message{Role: entities.RoleBot, Text: "a"})
	text := "b"
	require.NoError(t, sess.Update(id, entities.Patch{Text: &text}))
	sess.SetDraft("typing")

	unsubscribe()
	sess.SetDraft("ignored")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, 3)
	assert.Equal(t, "a", snaps[0].Messages[0].Text)
	assert.Equal(t, "b", snaps[1].Messages[0].Text)
	assert.Equal(t, "typing", snaps[2].Draft)
	assert.Equal(t, sess.ID(), snaps[2].SessionID)
}

func TestSession_BusyGate(t *testing.T) {
	sess := NewSession("")
	sess.SetDraft("query")

	require.True(t, sess.tryAcquire())
	assert.True(t, sess.Busy())
	assert.False(t, sess.tryAcquire())

	sess.release()
	assert.False(t, sess.Busy())
	assert.Empty(t, sess.Draft())
	assert.True(t, sess.tryAcquire())
}

func TestSession_SeqGrowsWithEveryMutation(t *testing.T) {
	sess := NewSession("")
	seqs := []uint64{sess.Snapshot().Seq}

	id := sess.Append(entities.Message{Role: entities.RoleBot, Text: "a"})
	seqs = append(seqs, sess.Snapshot().Seq)
	text := "b"
	require.NoError(t, sess.Update(id, entities.Patch{Text: &text}))
	seqs = append(seqs, sess.Snapshot().Seq)
	sess.SetDraft("typing")
	seqs = append(seqs, sess.Snapshot().Seq)
	require.True(t, sess.tryAcquire())
	seqs = append(seqs, sess.Snapshot().Seq)
	sess.release()
	seqs = append(seqs, sess.Snapshot().Seq)

	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1], "mutation %d", i)
	}

	before := sess.Snapshot().Seq
	_ = sess.Update("missing", entities.Patch{Text: &text})
	assert.Equal(t, before, sess.Snapshot().Seq, "a failed update is not a mutation")
}

func TestLatest_DropsSnapshotsDeliveredLate(t *testing.T) {
	sess := NewSession("")

	var (
		mu        sync.Mutex
		delivered []entities.Snapshot
	)
	release := make(chan struct{})
	holding := make(chan struct{})
	var once sync.Once

	// The first snapshot is held back until a newer mutation has been delivered.
	slow := ports.ObserverFunc(func(s entities.Snapshot) {
		if s.Draft == "typing" && len(s.Messages) == 0 {
			once.Do(func() { close(holding) })
			<-release
		}
	})
	sess.Subscribe(slow)
	sess.Subscribe(Latest(ports.ObserverFunc(func(s entities.Snapshot) {
		mu.Lock()
		delivered = append(delivered, s)
		mu.Unlock()
	})))

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.SetDraft("typing")
	}()
	<-holding

	sess.Append(entities.Message{Role: entities.RoleUser, Text: "cats"})
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, delivered)
	last := delivered[len(delivered)-1]
	assert.Len(t, last.Messages, 1, "newest state must win")
	for i := 1; i < len(delivered); i++ {
		assert.Greater(t, delivered[i].Seq, delivered[i-1].Seq)
	}
}
