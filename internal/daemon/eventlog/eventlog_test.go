package eventlog

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testEvent(id string, typ models.EventType, at time.Time) models.Event {
	return models.Event{
		EventID:    id,
		Type:       typ,
		SessionID:  "s1",
		PID:        100,
		RecordedAt: at,
		CWD:        "/code/a",
		Payload:    models.Payload{ToolName: "Edit", FilePath: "/code/a/main.go"},
	}
}

func TestAppendAndReplay(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)

	for i, typ := range []models.EventType{models.EventSessionStart, models.EventUserPromptSubmit, models.EventPostToolUse} {
		seq, inserted, err := l.Append(ctx, testEvent(fmt.Sprintf("e%d", i), typ, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.EqualValues(t, i+1, seq)
	}

	var got []models.Event
	require.NoError(t, l.Replay(ctx, 0, func(seq int64, e models.Event) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 3)
	assert.Equal(t, testEvent("e0", models.EventSessionStart, base), got[0])
	assert.Equal(t, models.EventPostToolUse, got[2].Type)

	got = nil
	require.NoError(t, l.Replay(ctx, 2, func(seq int64, e models.Event) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "e2", got[0].EventID)
}

func TestAppendDuplicate(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	e := testEvent("dup", models.EventStop, time.Now())

	seq1, inserted, err := l.Append(ctx, e)
	require.NoError(t, err)
	require.True(t, inserted)

	seq2, inserted, err := l.Append(ctx, e)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, seq1, seq2)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestReplayStopsOnError(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, err := l.Append(ctx, testEvent(fmt.Sprintf("e%d", i), models.EventStop, time.Now()))
		require.NoError(t, err)
	}

	calls := 0
	err := l.Replay(ctx, 0, func(int64, models.Event) error {
		calls++
		return fmt.Errorf("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, calls)
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	l, err := Open(path)
	require.NoError(t, err)
	_, _, err = l.Append(ctx, testEvent("persisted", models.EventSessionStart, time.Now()))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()

	last, err := l.LastSeq(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, last)
}

func TestLastSeqEmpty(t *testing.T) {
	l := openTestLog(t)
	last, err := l.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestEmptyPayloadRoundTrips(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	e := testEvent("bare", models.EventStop, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	e.Payload = models.Payload{}
	_, _, err := l.Append(ctx, e)
	require.NoError(t, err)

	var stored *string
	require.NoError(t, l.db.QueryRowContext(ctx, `SELECT payload FROM events WHERE event_id = ?`, "bare").Scan(&stored))
	assert.Nil(t, stored)

	var got []models.Event
	require.NoError(t, l.Replay(ctx, 0, func(seq int64, e models.Event) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
}
