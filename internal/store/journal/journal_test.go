package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"ordex/internal/events"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalAppendAndList(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	at := time.Now().UTC()
	require.NoError(t, j.Append(ctx, events.Event{
		Kind: events.KindOrderTriggered,
		At:   at,
		Payload: events.OrderEvent{
			OrderID:     "o1",
			OrderKind:   "stop_loss",
			Instrument:  "SOL",
			MarketPrice: 85,
		},
	}))
	require.NoError(t, j.Append(ctx, events.Event{
		Kind:    events.KindDCAExecuted,
		At:      at.Add(time.Second),
		Payload: events.DCAEvent{ScheduleID: "s1"},
	}))

	all, err := j.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, string(events.KindDCAExecuted), all[0].Kind)
	assert.Equal(t, string(events.KindOrderTriggered), all[1].Kind)
	assert.Equal(t, at.UnixMilli(), all[1].TS)
	assert.Equal(t, "o1", gjson.GetBytes(all[1].Payload, "order_id").String())
	assert.Equal(t, 85.0, gjson.GetBytes(all[1].Payload, "market_price").Float())
}

func TestJournalListFiltersByKind(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, j.Append(ctx, events.Event{Kind: events.KindDCAExecuted, At: time.Now(), Payload: events.DCAEvent{}}))
	}
	require.NoError(t, j.Append(ctx, events.Event{Kind: events.KindOrderExpired, At: time.Now(), Payload: events.OrderEvent{}}))

	got, err := j.List(ctx, string(events.KindDCAExecuted), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, string(events.KindDCAExecuted), e.Kind)
	}
}

func TestJournalRunDrainsBusSubscription(t *testing.T) {
	j := newTestJournal(t)
	bus := events.NewBus()
	ch := bus.Subscribe(16)

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Run(context.Background(), ch)
	}()

	bus.Publish(events.KindRebalanceCompleted, events.RebalanceEvent{TradesExecuted: 2})
	bus.Close()
	<-done

	got, err := j.List(context.Background(), string(events.KindRebalanceCompleted), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), gjson.GetBytes(got[0].Payload, "trades_executed").Int())
}

func TestJournalClosed(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	err := j.Append(context.Background(), events.Event{Kind: events.KindOrderTriggered})
	assert.ErrorContains(t, err, "journal is closed")
	_, err = j.List(context.Background(), "", 0)
	assert.ErrorContains(t, err, "journal is closed")
}

func TestJournalRejectsEmptyPath(t *testing.T) {
	_, err := New("")
	assert.ErrorContains(t, err, "path cannot be empty")
}
