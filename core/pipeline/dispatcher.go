package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"VoxNote/core/apperr"
	"VoxNote/logger"
	"VoxNote/model"
)

var (
	// ErrQueueFull 等待队列已满
	ErrQueueFull = errors.New("pipeline queue is full, try again later")
	// ErrDispatcherStopped 调度器已停止
	ErrDispatcherStopped = errors.New("pipeline dispatcher stopped")
)

// Runner 执行单次流水线
type Runner interface {
	Run(ctx context.Context, req Request) (*model.Note, error)
}

// Admitter 由需要在排队阶段记录状态的 Runner 实现
type Admitter interface {
	// Accept 任务进入队列前调用
	Accept(ctx context.Context, req Request)
	// Reject 任务未能进入队列时调用
	Reject(ctx context.Context, req Request, err error)
}

type result struct {
	note *model.Note
	err  error
}

type job struct {
	ctx    context.Context
	req    Request
	result chan result
}

// Dispatcher 固定数量的工作协程执行流水线，慢请求不会阻塞其他请求。
// 任务一旦被接收就与提交方的 context 解绑，提交方放弃等待不会中断执行。
type Dispatcher struct {
	runner      Runner
	jobs        chan *job
	workerCount int
	wg          sync.WaitGroup
	stopChan    chan struct{}
	mu          sync.RWMutex
	stopped     bool
}

// NewDispatcher 创建调度器并启动工作协程
func NewDispatcher(runner Runner, workerCount, queueSize int) *Dispatcher {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Dispatcher{
		runner:      runner,
		jobs:        make(chan *job, queueSize),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
	d.startWorkers()
	return d
}

func (d *Dispatcher) startWorkers() {
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case j := <-d.jobs:
			j.result <- d.execute(j)
		case <-d.stopChan:
			// 停止后拒绝尚未开始的任务
			for {
				select {
				case j := <-d.jobs:
					j.result <- result{err: ErrDispatcherStopped}
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) execute(j *job) (res result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Dispatcher] 流水线 panic",
				logger.String("runId", j.req.RunID),
				logger.Any("panic", r))
			res = result{err: apperr.New(apperr.Internal, "pipeline panic", fmt.Errorf("%v", r))}
		}
	}()
	note, err := d.runner.Run(j.ctx, j.req)
	return result{note: note, err: err}
}

func (d *Dispatcher) enqueue(ctx context.Context, req Request) (chan result, error) {
	j := &job{
		ctx:    context.WithoutCancel(ctx),
		req:    req,
		result: make(chan result, 1),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return nil, ErrDispatcherStopped
	}
	select {
	case d.jobs <- j:
		return j.result, nil
	default:
		return nil, ErrQueueFull
	}
}

// Submit 提交任务并等待结果。ctx 结束时提前返回 ctx.Err()，任务继续执行。
func (d *Dispatcher) Submit(ctx context.Context, req Request) (*model.Note, error) {
	ch, err := d.enqueue(ctx, req)
	if err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.note, r.err
	case <-ctx.Done():
		logger.Warn("[Dispatcher] 调用方已放弃等待，任务继续执行", logger.String("runId", req.RunID))
		return nil, ctx.Err()
	}
}

// Enqueue 提交任务后立即返回，结果通过状态记录查询。
// 排队中的任务在 worker 开始执行前即可查询到 Received 状态。
func (d *Dispatcher) Enqueue(ctx context.Context, req Request) error {
	admitter, _ := d.runner.(Admitter)
	// 先记录再入队，worker 写入的后续状态不会被覆盖
	if admitter != nil {
		admitter.Accept(ctx, req)
	}
	ch, err := d.enqueue(ctx, req)
	if err != nil {
		if admitter != nil {
			admitter.Reject(ctx, req, err)
		}
		return err
	}
	go func() {
		if r := <-ch; r.err != nil && !errors.Is(r.err, ErrDispatcherStopped) {
			logger.Debug("[Dispatcher] 异步任务失败", logger.String("runId", req.RunID), logger.ErrorField(r.err))
		}
	}()
	return nil
}

// Stop 停止接收新任务并等待正在执行的任务完成
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stopChan)
	d.mu.Unlock()

	d.wg.Wait()
}
