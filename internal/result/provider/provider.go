// Package provider looks up the entities a rendered result refers to: problems, users and contest task labels.
package provider

import (
	"context"
	"sync"

	"judgeresult/internal/result/model"
	pkgrepo "judgeresult/pkg/repository"
)

// ProblemProvider resolves problems by id.
type ProblemProvider = pkgrepo.Reader[model.Problem]

// UserProvider resolves submitters by id.
type UserProvider = pkgrepo.Reader[model.User]

// LabelProvider resolves the display labels of contest tasks.
// Keys without a label are absent from the returned map.
type LabelProvider interface {
	Labels(ctx context.Context, keys []model.LabelKey) (map[model.LabelKey]string, error)
}

// MemoryReader is an in-process Reader. Entities are added with Put.
type MemoryReader[T any] struct {
	mu    sync.RWMutex
	items map[int64]*T
}

// NewMemoryReader creates an empty reader.
func NewMemoryReader[T any]() *MemoryReader[T] {
	return &MemoryReader[T]{items: make(map[int64]*T)}
}

// Put stores v under id, replacing any previous entity.
func (m *MemoryReader[T]) Put(id int64, v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = &v
}

func (m *MemoryReader[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[id]
	if !ok {
		return nil, pkgrepo.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryReader[T]) BatchGet(ctx context.Context, ids []int64) (map[int64]*T, error) {
	return pkgrepo.BatchGetEach[T](ctx, m, ids)
}

// MemoryLabels is an in-process LabelProvider.
type MemoryLabels struct {
	mu     sync.RWMutex
	labels map[model.LabelKey]string
}

// NewMemoryLabels creates a provider holding labels.
func NewMemoryLabels(labels ...model.ContestTaskLabel) *MemoryLabels {
	m := &MemoryLabels{labels: make(map[model.LabelKey]string, len(labels))}
	for _, l := range labels {
		m.labels[l.Key()] = l.Label
	}
	return m
}

// Put adds or replaces a label.
func (m *MemoryLabels) Put(l model.ContestTaskLabel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[l.Key()] = l.Label
}

func (m *MemoryLabels) Labels(ctx context.Context, keys []model.LabelKey) (map[model.LabelKey]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.LabelKey]string, len(keys))
	for _, k := range keys {
		if label, ok := m.labels[k]; ok {
			out[k] = label
		}
	}
	return out, nil
}
