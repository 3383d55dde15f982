package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebben/riool/settings"
)

type fakeProcessor struct {
	uploads  chan int64
	computed chan struct{}
	failures atomic.Int32
	failN    int32
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		uploads:  make(chan int64, 10),
		computed: make(chan struct{}, 10),
	}
}

func (f *fakeProcessor) ProcessUpload(_ context.Context, uploadID int64) error {
	if f.failures.Add(1) <= f.failN {
		return errors.New("temporary failure")
	}
	f.uploads <- uploadID
	return nil
}

func (f *fakeProcessor) ComputePending(_ context.Context) error {
	f.computed <- struct{}{}
	return nil
}

func runQueue(t *testing.T, config settings.TasksConfig, p Processor) *Queue {
	t.Helper()

	q, err := NewQueue(config)
	require.NoError(t, err)
	q.Register(p)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = q.Close()
	})

	select {
	case <-q.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("queue did not start")
	}
	return q
}

func TestQueue_ProcessUpload(t *testing.T) {
	p := newFakeProcessor()
	q := runQueue(t, settings.TasksConfig{}, p)
	assert.True(t, q.IsRunning())

	require.NoError(t, q.ProcessUploadAsync(42))

	select {
	case id := <-p.uploads:
		assert.Equal(t, int64(42), id)
	case <-time.After(5 * time.Second):
		t.Fatal("upload was not processed")
	}
}

func TestQueue_ComputeLostCapacity(t *testing.T) {
	p := newFakeProcessor()
	q := runQueue(t, settings.TasksConfig{}, p)

	require.NoError(t, q.ComputeLostCapacityAsync())

	select {
	case <-p.computed:
	case <-time.After(5 * time.Second):
		t.Fatal("lost capacity was not computed")
	}
}

func TestQueue_Retry(t *testing.T) {
	p := newFakeProcessor()
	p.failN = 1
	q := runQueue(t, settings.TasksConfig{MaxRetries: 2}, p)

	require.NoError(t, q.ProcessUploadAsync(7))

	select {
	case id := <-p.uploads:
		assert.Equal(t, int64(7), id)
		assert.Equal(t, int32(2), p.failures.Load())
	case <-time.After(10 * time.Second):
		t.Fatal("upload was not retried")
	}
}

func TestNewQueue_InvalidSchedule(t *testing.T) {
	_, err := NewQueue(settings.TasksConfig{SweepSchedule: "not a schedule"})
	assert.Error(t, err)
}
