// Package inmemory provides a map-backed history driver.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/fuhaigao/inference-server/pkg/history"
)

// Driver implements history.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	// records maps record IDs to copies of the stored records
	records map[string]history.Record
}

var _ history.Driver = (*Driver)(nil)

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]history.Record),
	}
}

// Put stores a copy of rec.
func (d *Driver) Put(_ context.Context, rec *history.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}
	if rec.ID == "" {
		return errors.New("cannot store record without id")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.records[rec.ID] = *rec
	return nil
}

// Get retrieves a record by ID.
func (d *Driver) Get(_ context.Context, id string) (*history.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[id]
	if !ok {
		return nil, history.NotFoundError{ID: id}
	}

	return &rec, nil
}

// List returns records most recently started first.
func (d *Driver) List(_ context.Context, limit int) ([]*history.Record, error) {
	d.mu.RLock()
	out := make([]*history.Record, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, &rec)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
