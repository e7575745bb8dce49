package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/pkg/storage"
)

const listAllLimit = 1 << 16

// registry tracks known clients and their liveness. Records are never
// deleted; clients whose heartbeat ages past the liveness window simply
// drop out of Active results.
type registry struct {
	mu sync.Mutex

	db         storage.Storage
	maxClients int
	window     time.Duration
	now        func() time.Time
}

func newRegistry(db storage.Storage, maxClients int, window time.Duration) *registry {
	return &registry{
		db:         db,
		maxClients: maxClients,
		window:     window,
		now:        time.Now,
	}
}

// Register creates the record, or refreshes metadata for a known ID.
// Repeating a registration never duplicates a record.
func (r *registry) Register(ctx context.Context, c client.Client) (client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	data, err := r.db.Get(ctx, c.ID)
	switch {
	case err == nil:
		existing, ok := data.(client.Client)
		if !ok {
			return client.Client{}, storage.ErrInvalidData
		}
		existing.Name = c.Name
		existing.Location = c.Location
		existing.DatasetSize = c.DatasetSize
		existing.ModelType = c.ModelType
		existing.Status = client.Active
		existing.LastSeen = now
		if err := r.db.Update(ctx, existing.ID, existing); err != nil {
			return client.Client{}, err
		}

		return existing, nil
	case errors.Is(err, storage.ErrNotFound):
	default:
		return client.Client{}, err
	}

	_, total, err := r.db.List(ctx, 0, 1)
	if err != nil {
		return client.Client{}, err
	}
	if total >= uint64(r.maxClients) {
		return client.Client{}, ErrCapacity
	}

	c.Status = client.Active
	c.LastSeen = now
	c.RegisteredAt = now
	c.ModelVersion = 0
	if err := r.db.Create(ctx, c.ID, c); err != nil {
		return client.Client{}, err
	}

	return c, nil
}

// Heartbeat refreshes last-seen, status, and the adopted model version.
func (r *registry) Heartbeat(ctx context.Context, clientID string, status client.Status, modelVersion uint64) (client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.get(ctx, clientID)
	if err != nil {
		return client.Client{}, err
	}

	c.Status = status
	c.LastSeen = r.now()
	if modelVersion > c.ModelVersion {
		c.ModelVersion = modelVersion
	}
	if err := r.db.Update(ctx, c.ID, c); err != nil {
		return client.Client{}, err
	}

	return c, nil
}

func (r *registry) Get(ctx context.Context, clientID string) (client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.get(ctx, clientID)
}

func (r *registry) get(ctx context.Context, clientID string) (client.Client, error) {
	data, err := r.db.Get(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return client.Client{}, ErrNotRegistered
	}
	if err != nil {
		return client.Client{}, err
	}
	c, ok := data.(client.Client)
	if !ok {
		return client.Client{}, storage.ErrInvalidData
	}

	return c, nil
}

func (r *registry) List(ctx context.Context, offset, limit uint64) (client.Page, error) {
	data, total, err := r.db.List(ctx, offset, limit)
	if err != nil {
		return client.Page{}, err
	}
	clients := make([]client.Client, len(data))
	for i := range data {
		c, ok := data[i].(client.Client)
		if !ok {
			return client.Page{}, storage.ErrInvalidData
		}
		clients[i] = c
	}

	return client.Page{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Clients: clients,
	}, nil
}

// Active returns clients whose last heartbeat is within the liveness
// window. Read-only: it never mutates records.
func (r *registry) Active(ctx context.Context) ([]client.Client, error) {
	data, _, err := r.db.List(ctx, 0, listAllLimit)
	if err != nil {
		return nil, err
	}

	now := r.now()
	active := make([]client.Client, 0, len(data))
	for i := range data {
		c, ok := data[i].(client.Client)
		if !ok {
			return nil, storage.ErrInvalidData
		}
		if c.Status == client.Inactive {
			continue
		}
		if c.AliveWithin(r.window, now) {
			active = append(active, c)
		}
	}

	return active, nil
}

// SetStatus moves a set of clients to the given status, used when a
// cohort starts or finishes training. Missing records are skipped; a
// client that vanished mid-round is the timeout path's problem.
func (r *registry) SetStatus(ctx context.Context, clientIDs []string, status client.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range clientIDs {
		c, err := r.get(ctx, id)
		if err != nil {
			continue
		}
		c.Status = status
		_ = r.db.Update(ctx, c.ID, c)
	}
}

// Count returns the total number of registered clients.
func (r *registry) Count(ctx context.Context) (uint64, error) {
	_, total, err := r.db.List(ctx, 0, 1)

	return total, err
}
