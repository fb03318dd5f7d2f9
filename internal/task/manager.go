// Package task provides lifecycle management for the long-running goroutines
// of the acquisition pipeline (link reader, delivery scheduler).
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gmlink/gmlink/logger"
)

// Func represents a function that performs one iteration of a task within a
// goroutine managed by the Manager. It should return true to continue
// running the task, or false to stop the goroutine.
type Func func() bool

// Manager manages the lifecycle of the pipeline goroutines.
//
// It provides a structured way to start, stop, and wait for goroutines,
// ensuring proper cancellation and resource cleanup. When the manager's
// context is canceled, all running goroutines are signaled to stop; Wait()
// blocks until they have terminated and then re-arms the manager so a
// subsequent transport reattach can start tasks again.
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a new Manager with the given context as the parent
// context and logger.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)
	return mgr
}

// getContext safely returns the current context.
func (mgr *Manager) getContext() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Context returns the context that is canceled when Stop is called.
// Task bodies may select on it for blocking waits.
func (mgr *Manager) Context() context.Context {
	return mgr.getContext()
}

// Start starts a new goroutine with the given name that calls taskFunc in a
// loop until it returns false or the manager is stopped.
func (mgr *Manager) Start(name string, taskFunc Func) error {
	mgr.logger.Debug("start task", "name", name)

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		mgr.runTaskLoop(taskFunc)
	})

	return starter.waitForStart()
}

// StartTick starts a new goroutine that executes taskFunc each time the
// given channel delivers, until taskFunc returns false, the channel closes,
// or the manager is stopped.
//
// The channel is typically a time.Ticker's C, but tests may drive it
// manually for deterministic scheduling.
func (mgr *Manager) StartTick(name string, taskFunc Func, tick <-chan time.Time) error {
	mgr.logger.Debug("start tick task", "name", name)

	if tick == nil {
		return fmt.Errorf("tick channel is nil")
	}

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		for {
			ctx := mgr.getContext()
			select {
			case <-ctx.Done():
				return
			case _, ok := <-tick:
				if !ok {
					mgr.logger.Debug("tick channel closed", "name", name)
					return
				}
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	})

	return starter.waitForStart()
}

// callWithRecover calls a function that returns bool with panic protection.
func (mgr *Manager) callWithRecover(name string, fn func() bool) bool {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	return fn()
}

// Stop signals all running goroutines.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate, then re-arms the manager.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	// recreate context with lock
	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

// taskStarter encapsulates common startup logic.
type taskStarter struct {
	mgr     *Manager
	name    string
	started chan error
}

func (mgr *Manager) newTaskStarter(name string) (*taskStarter, error) {
	ctx := mgr.getContext()

	// check if already cancelled
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("task manager already stopped")
	default:
	}

	return &taskStarter{
		mgr:     mgr,
		name:    name,
		started: make(chan error, 1),
	}, nil
}

// startTask runs the common startup sequence for all tasks.
func (s *taskStarter) startTask(taskBody func()) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)

	go func() {
		defer s.mgr.wg.Done()

		// signal startup status
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.started <- fmt.Errorf("panic during startup: %v", r)
				}
			}()

			s.mgr.count.Add(1)
			s.started <- nil
		}()

		// setup cleanup
		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug(fmt.Sprintf("%s task terminated", s.name), "task_count", s.mgr.TaskCount())
		}()

		// run the actual task body
		taskBody()
	}()
}

// waitForStart waits for the task to start with timeout.
func (s *taskStarter) waitForStart() error {
	ctx := s.mgr.getContext()

	select {
	case err := <-s.started:
		if err != nil {
			s.mgr.wg.Done() // compensate for failed start
			return fmt.Errorf("failed to start %s: %w", s.name, err)
		}

		return nil

	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for %s to start", s.name)

	case <-ctx.Done():
		return fmt.Errorf("context cancelled while starting %s", s.name)
	}
}

// runTaskLoop runs a task function in a loop with context cancellation.
func (mgr *Manager) runTaskLoop(taskFunc func() bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "panic", r)
		}
	}()

	for {
		ctx := mgr.getContext()
		select {
		case <-ctx.Done():
			return
		default:
			if !taskFunc() {
				return
			}
		}
	}
}
