package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"VoxNote/core/apperr"
	"VoxNote/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	release  chan struct{}
	started  chan string
	finished atomic.Int32
	ctxErr   atomic.Value
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{}), started: make(chan string, 16)}
}

func (b *blockingRunner) Run(ctx context.Context, req Request) (*model.Note, error) {
	b.started <- req.RunID
	if req.Title == "slow" {
		<-b.release
	}
	if err := ctx.Err(); err != nil {
		b.ctxErr.Store(err)
	}
	b.finished.Add(1)
	return &model.Note{Title: req.RunID}, nil
}

func TestDispatcherSlowRunDoesNotBlockOthers(t *testing.T) {
	runner := newBlockingRunner()
	d := NewDispatcher(runner, 2, 4)
	defer d.Stop()
	defer close(runner.release)

	go func() { _, _ = d.Submit(context.Background(), Request{RunID: "slow", Title: "slow"}) }()
	<-runner.started

	note, err := d.Submit(context.Background(), Request{RunID: "fast"})
	require.NoError(t, err)
	assert.Equal(t, "fast", note.Title)
}

func TestDispatcherQueueFull(t *testing.T) {
	runner := newBlockingRunner()
	d := NewDispatcher(runner, 1, 1)
	defer d.Stop()

	go func() { _, _ = d.Submit(context.Background(), Request{RunID: "a", Title: "slow"}) }()
	<-runner.started // 唯一的 worker 已被占用

	require.NoError(t, d.Enqueue(context.Background(), Request{RunID: "b", Title: "slow"}))

	_, err := d.Submit(context.Background(), Request{RunID: "c"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(runner.release)
}

func TestDispatcherCallerCancelDoesNotCancelRun(t *testing.T) {
	runner := newBlockingRunner()
	d := NewDispatcher(runner, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.Submit(ctx, Request{RunID: "slow", Title: "slow"})
		done <- err
	}()
	<-runner.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(runner.release)
	d.Stop()
	assert.Equal(t, int32(1), runner.finished.Load())
	assert.Nil(t, runner.ctxErr.Load(), "run context must be detached from the caller")
}

func TestDispatcherStopRejectsNewWork(t *testing.T) {
	d := NewDispatcher(newBlockingRunner(), 1, 1)
	d.Stop()
	d.Stop()

	_, err := d.Submit(context.Background(), Request{RunID: "late"})
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

type panicRunner struct{}

func (panicRunner) Run(ctx context.Context, req Request) (*model.Note, error) {
	panic("boom")
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher(panicRunner{}, 1, 1)
	defer d.Stop()

	_, err := d.Submit(context.Background(), Request{RunID: "p"})
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestDispatcherRunsConcurrently(t *testing.T) {
	runner := newBlockingRunner()
	d := NewDispatcher(runner, 4, 8)
	defer d.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Submit(context.Background(), Request{RunID: "x"})
			assert.NoError(t, err)
		}()
	}

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(5 * time.Second):
		t.Fatal("submissions did not complete")
	}
	assert.Equal(t, int32(8), runner.finished.Load())
}

type admittingRunner struct {
	*blockingRunner
	mu     sync.Mutex
	events []string
}

func (a *admittingRunner) log(event string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *admittingRunner) snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

func (a *admittingRunner) Run(ctx context.Context, req Request) (*model.Note, error) {
	a.log("run:" + req.RunID)
	return a.blockingRunner.Run(ctx, req)
}

func (a *admittingRunner) Accept(ctx context.Context, req Request) {
	a.log("accept:" + req.RunID)
}

func (a *admittingRunner) Reject(ctx context.Context, req Request, err error) {
	a.log("reject:" + req.RunID)
}

func TestDispatcherEnqueueRecordsQueuedRun(t *testing.T) {
	runner := &admittingRunner{blockingRunner: newBlockingRunner()}
	d := NewDispatcher(runner, 1, 1)
	defer d.Stop()

	go func() { _, _ = d.Submit(context.Background(), Request{RunID: "a", Title: "slow"}) }()
	<-runner.started

	// b 排队等待，c 因队列已满被拒绝
	require.NoError(t, d.Enqueue(context.Background(), Request{RunID: "b"}))
	assert.ErrorIs(t, d.Enqueue(context.Background(), Request{RunID: "c"}), ErrQueueFull)
	assert.Equal(t, []string{"run:a", "accept:b", "accept:c", "reject:c"}, runner.snapshot())

	close(runner.release)
	select {
	case id := <-runner.started:
		assert.Equal(t, "b", id)
	case <-time.After(5 * time.Second):
		t.Fatal("queued run never started")
	}
	assert.Equal(t, []string{"run:a", "accept:b", "accept:c", "reject:c", "run:b"}, runner.snapshot())
}
