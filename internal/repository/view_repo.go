package repository

import (
	"context"

	"postboard/internal/model"
)

type ViewRepository interface {
	// CreateIfAbsent inserts the view unless (user, post) already exists.
	// It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, view *model.View) (bool, error)
}

type viewRepository struct {
	s *store
}

func (r *viewRepository) CreateIfAbsent(ctx context.Context, view *model.View) (bool, error) {
	return createIfAbsent(r.s.conn(ctx), view)
}
