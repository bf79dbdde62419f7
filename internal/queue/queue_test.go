package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamjoytank/docker-code-runner/internal/apierr"
	"github.com/iamjoytank/docker-code-runner/pkg/models"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultRedisConfig()
	cfg.Host = mr.Host()
	cfg.Port = 0
	cfg.URL = "redis://" + mr.Addr()

	q, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestSubmitTwiceProducesDistinctJobIDs(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	jobA, err := q.Submit(ctx, "python", "print(1)")
	require.NoError(t, err)
	jobB, err := q.Submit(ctx, "python", "print(1)")
	require.NoError(t, err)

	assert.NotEqual(t, jobA.ID, jobB.ID)
	assert.Equal(t, models.StateWaiting, jobA.State)
}

func TestDequeueReturnsJobsInFIFOOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Submit(ctx, "python", "print('first')")
	require.NoError(t, err)
	second, err := q.Submit(ctx, "python", "print('second')")
	require.NoError(t, err)

	got1, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got1)
	assert.Equal(t, first.ID, got1.ID)
	assert.Equal(t, models.StateActive, got1.State)

	got2, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got2)
	assert.Equal(t, second.ID, got2.ID)
}

func TestDequeueReturnsNilWhenEmpty(t *testing.T) {
	q := newTestQueue(t)

	got, err := q.Dequeue(context.Background(), 50*time.Millisecond)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetUnknownJobReturnsNotFound(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.Get(context.Background(), "does-not-exist")

	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestCompleteSetsStateAndOutput(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Submit(ctx, "python", "print('hi')")
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.Complete(ctx, job.ID, "hi\n"))

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, got.State)
	assert.Equal(t, "hi\n", got.Output)
}

func TestFailSetsStateAndErrorReason(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Submit(ctx, "c", "int main(){return x;}")
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, job.ID, "gcc: error: 'x' undeclared"))

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, got.State)
	assert.Contains(t, got.Error, "undeclared")
}

func TestGetResultAfterTerminalStateIsIdempotent(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Submit(ctx, "python", "print(1)")
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, job.ID, "1\n"))

	first, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	second, err := q.Get(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRecoverStalledMarksInFlightJobsStalled(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Submit(ctx, "python", "print(1)")
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, time.Second) // moves it onto the active list, never finished

	require.NoError(t, err)

	n, err := q.RecoverStalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateStalled, got.State)
}
