package saga

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        string            `json:"id"`
	SagaID    string            `json:"sagaId"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Run       string            `json:"run"`
	Category  string            `json:"category"` // dispatch, report, system
	Action    string            `json:"action"`   // target.start, target.updated, target.failed, etc.
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Store interface {
	Append(ctx context.Context, evt *Event) error
	ListBySaga(ctx context.Context, sagaID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Saga is a helper for logging structured events during a dispatch run.
type Saga struct {
	ID       string
	Run      string
	Source   string
	Category string
	store    Store
}

func New(store Store, run, source, category string) *Saga {
	return &Saga{
		ID:       uuid.New().String(),
		Run:      run,
		Source:   source,
		Category: category,
		store:    store,
	}
}

func (s *Saga) Log(ctx context.Context, action, message string, metadata map[string]string) error {
	evt := &Event{
		ID:        uuid.New().String(),
		SagaID:    s.ID,
		Timestamp: time.Now(),
		Source:    s.Source,
		Run:       s.Run,
		Category:  s.Category,
		Action:    action,
		Message:   message,
		Metadata:  metadata,
	}
	return s.store.Append(ctx, evt)
}

func (s *Saga) TargetStart(ctx context.Context, target string) error {
	return s.Log(ctx, "target.start", "updating "+target, map[string]string{"target": target})
}

func (s *Saga) TargetUpdated(ctx context.Context, target, version string, durationMs int64) error {
	return s.Log(ctx, "target.updated", target+" updated (version "+version+")", map[string]string{
		"target":     target,
		"version":    version,
		"durationMs": strconv.FormatInt(durationMs, 10),
	})
}

func (s *Saga) TargetFailed(ctx context.Context, target string, err error) error {
	return s.Log(ctx, "target.failed", target+" failed: "+err.Error(), map[string]string{
		"target": target,
		"error":  err.Error(),
	})
}
