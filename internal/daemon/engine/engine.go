// Package engine runs the daemon's background tasks.
package engine

import (
	"context"
	"sync"

	"github.com/grovetools/tabd/internal/daemon/store"
	"github.com/sirupsen/logrus"
)

// Task is a background worker. Run blocks until ctx is canceled.
type Task interface {
	// Name returns the task's name for logging.
	Name() string

	// Run starts the task and returns when ctx is canceled or the task fails.
	Run(ctx context.Context) error
}

// Engine manages and runs all tasks.
type Engine struct {
	store  *store.Store
	tasks  []Task
	logger *logrus.Entry
}

// New creates a new Engine instance.
func New(st *store.Store, logger *logrus.Entry) *Engine {
	return &Engine{
		store:  st,
		logger: logger,
	}
}

// Register adds a task to the engine. Tasks registered after Start are not run.
func (e *Engine) Register(t Task) {
	e.tasks = append(e.tasks, t)
}

// Start runs all tasks and blocks until every one of them has returned.
func (e *Engine) Start(ctx context.Context) {
	var wg sync.WaitGroup

	for _, t := range e.tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			e.logger.WithField("task", task.Name()).Info("Starting task")
			if err := task.Run(ctx); err != nil {
				e.logger.WithField("task", task.Name()).WithError(err).Error("Task failed")
			}
		}(t)
	}

	wg.Wait()
}

// Store returns the engine's coordination store.
func (e *Engine) Store() *store.Store {
	return e.store
}
