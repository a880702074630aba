package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBufferFull reports a payload rejected because the pool's buffer was at
// capacity at submit time.
var ErrBufferFull = errors.New("worker pool buffer full")

type ProcessFunc func(ctx context.Context, payload any) error

// GiveUpFunc receives payloads that exhausted their attempts or could not
// be accepted at all.
type GiveUpFunc func(payload any, err error)

// Pool is a fixed-size worker pool with bounded in-worker retry. Submit
// never blocks the caller: a full buffer hands the payload to the give-up
// callback instead.
type Pool struct {
	numWorkers  int
	maxAttempts int
	retryDelay  time.Duration
	tasks       chan any
	process     ProcessFunc
	giveUp      GiveUpFunc
	wg          sync.WaitGroup
}

func NewPool(numWorkers, bufferSize, maxAttempts int, retryDelay time.Duration, process ProcessFunc, giveUp GiveUpFunc) *Pool {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pool{
		numWorkers:  numWorkers,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		tasks:       make(chan any, bufferSize),
		process:     process,
		giveUp:      giveUp,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(ctx, payload)
		}
	}
}

func (p *Pool) run(ctx context.Context, payload any) {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err = p.process(ctx, payload); err == nil {
			return
		}
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryDelay):
		}
	}
	if p.giveUp != nil {
		p.giveUp(payload, err)
	}
}

// Submit enqueues a payload without blocking. It reports false, after
// invoking the give-up callback, when the buffer is full.
func (p *Pool) Submit(payload any) bool {
	select {
	case p.tasks <- payload:
		return true
	default:
		if p.giveUp != nil {
			p.giveUp(payload, ErrBufferFull)
		}
		return false
	}
}

// Stop closes the task channel and waits for in-flight work to finish.
// Callers must not Submit after Stop.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
