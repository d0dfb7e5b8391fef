package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// Status is the lifecycle state of an action request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Defaults for NewExecutor.
const (
	DefaultMaxRecords = 100
	DefaultTimeout    = 30 * time.Second
)

// Record tracks one accepted action request.
type Record struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ThingID       string     `json:"thing_id"`
	Input         Input      `json:"input,omitempty"`
	Status        Status     `json:"status"`
	TimeRequested time.Time  `json:"time_requested"`
	TimeCompleted *time.Time `json:"time_completed,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Logger defines the logging interface used by the executor.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Executor accepts action requests, runs them in the background and keeps
// the most recent records.
type Executor struct {
	gen        Generator
	maxRecords int
	timeout    time.Duration
	logger     Logger

	mu      sync.RWMutex
	records map[string]*Record
	order   []string
	wg      sync.WaitGroup
}

// NewExecutor creates an executor. A nil generator means NoActions.
func NewExecutor(gen Generator, maxRecords int, timeout time.Duration) *Executor {
	if gen == nil {
		gen = NoActions{}
	}
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		gen:        gen,
		maxRecords: maxRecords,
		timeout:    timeout,
		logger:     noopLogger{},
		records:    make(map[string]*Record),
	}
}

// SetLogger sets the logger.
func (e *Executor) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	e.logger = l
}

// Request resolves name against h and, if supported, starts it.
//
// Returns:
//   - Record: snapshot of the pending request
//   - error: ErrUnsupported when the generator does not recognise name
func (e *Executor) Request(h *thing.Handle, name string, input Input) (Record, error) {
	act, ok := e.gen.Generate(h, name, input)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}

	rec := &Record{
		ID:            act.ID(),
		Name:          act.Name(),
		ThingID:       act.ThingID(),
		Input:         act.Input(),
		Status:        StatusPending,
		TimeRequested: time.Now().UTC(),
	}

	e.mu.Lock()
	e.records[rec.ID] = rec
	e.order = append(e.order, rec.ID)
	e.evictLocked()
	snapshot := *rec
	e.mu.Unlock()

	e.logger.Info("action requested",
		"action_id", rec.ID,
		"name", rec.Name,
		"thing_id", rec.ThingID,
	)

	e.wg.Add(1)
	go e.perform(act)

	return snapshot, nil
}

func (e *Executor) perform(act Action) {
	defer e.wg.Done()

	e.setStatus(act.ID(), StatusRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	err := act.Perform(ctx)
	if err != nil {
		e.logger.Warn("action failed",
			"action_id", act.ID(),
			"name", act.Name(),
			"error", err,
		)
		e.setStatus(act.ID(), StatusFailed, err)
		return
	}
	e.setStatus(act.ID(), StatusCompleted, nil)
}

func (e *Executor) setStatus(id string, status Status, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[id]
	if !ok {
		// Evicted while running.
		return
	}
	rec.Status = status
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now().UTC()
		rec.TimeCompleted = &now
	}
	if err != nil {
		rec.Error = err.Error()
	}
}

// evictLocked drops the oldest records beyond maxRecords.
func (e *Executor) evictLocked() {
	for len(e.order) > e.maxRecords {
		delete(e.records, e.order[0])
		e.order = e.order[1:]
	}
}

// Get returns a snapshot of the record for thingID and id.
func (e *Executor) Get(thingID, id string) (Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.records[id]
	if !ok || rec.ThingID != thingID {
		return Record{}, fmt.Errorf("%w: %s", ErrActionNotFound, id)
	}
	return *rec, nil
}

// List returns snapshots of the records for thingID, oldest first.
func (e *Executor) List(thingID string) []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Record, 0)
	for _, id := range e.order {
		if rec := e.records[id]; rec.ThingID == thingID {
			out = append(out, *rec)
		}
	}
	return out
}

// Wait blocks until every started action has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}
