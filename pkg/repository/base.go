package repository

import "context"

// Reader is the read side shared by the entity lookups the result service depends on.
//
// T is the entity type (e.g., Problem, User)
type Reader[T any] interface {
	// GetByID retrieves an entity by its primary key
	// Returns nil and ErrNotFound if the entity doesn't exist
	GetByID(ctx context.Context, id int64) (*T, error)

	// BatchGet retrieves several entities at once.
	// Missing ids are simply absent from the returned map.
	BatchGet(ctx context.Context, ids []int64) (map[int64]*T, error)
}

// BatchGetEach implements BatchGet on top of GetByID for readers without a native batch query.
func BatchGetEach[T any](ctx context.Context, r Reader[T], ids []int64) (map[int64]*T, error) {
	out := make(map[int64]*T, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		v, err := r.GetByID(ctx, id)
		if err != nil {
			if IsNotFoundError(err) {
				continue
			}
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}
