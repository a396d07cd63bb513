package repository

import (
	"context"

	"postboard/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LikeRepository interface {
	// CreateIfAbsent inserts the like unless (user, post) already exists.
	// It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, like *model.Like) (bool, error)
}

type likeRepository struct {
	s *store
}

var userPostConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
	DoNothing: true,
}

func (r *likeRepository) CreateIfAbsent(ctx context.Context, like *model.Like) (bool, error) {
	return createIfAbsent(r.s.conn(ctx), like)
}

// createIfAbsent does INSERT ... ON CONFLICT (user_id, post_id) DO NOTHING
func createIfAbsent(db *gorm.DB, row interface{}) (bool, error) {
	result := db.Clauses(userPostConflict).Create(row)
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected == 1, nil
}
