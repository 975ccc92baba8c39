package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is a snapshot of a periodic worker's run statistics
type Status struct {
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
}

// periodic runs task every interval until stopped. The concrete workers
// embed it and supply the task.
type periodic struct {
	name       string
	interval   time.Duration
	runOnStart bool
	task       func(ctx context.Context) error
	logger     *zap.Logger

	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	status    Status
}

// Start begins the polling loop in a background goroutine
func (p *periodic) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", p.name)
	}

	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("%s already running", p.name)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.isRunning = true
	p.status.Running = true
	p.mu.Unlock()

	p.logger.Info(p.name+" started", zap.Duration("interval", p.interval))

	go p.loop(loopCtx, p.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (p *periodic) Stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.status.Running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	st := p.Status()
	p.logger.Info(p.name+" stopped",
		zap.Int("runs", st.Runs),
		zap.Int("failures", st.Failures))
	return nil
}

// Name returns the worker name for identification
func (p *periodic) Name() string {
	return p.name
}

// Status returns the current run statistics
func (p *periodic) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *periodic) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if p.runOnStart {
		p.runOnce(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Poll loop context cancelled", zap.String("worker_name", p.name))
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *periodic) runOnce(ctx context.Context) {
	err := p.task(ctx)

	p.mu.Lock()
	p.status.Runs++
	p.status.LastRun = time.Now()
	if err != nil {
		p.status.Failures++
		p.status.LastError = err.Error()
	} else {
		p.status.LastError = ""
	}
	p.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		p.logger.Error(p.name+" run failed", zap.Error(err))
	}
}
