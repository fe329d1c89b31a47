// Package repo is a small generic node repository over Neo4j.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no node has the id.
var ErrNotFound = errors.New("not found")

// Repository stores entities keyed by ID.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Upsert(ctx context.Context, entity T) error
	UpsertBatch(ctx context.Context, entities []T) error
	Delete(ctx context.Context, id ID) error
}

// ListOpts pages and filters List. Filter keys are property names matched
// by equality.
type ListOpts struct {
	Offset int
	Limit  int
	Filter map[string]any
}
