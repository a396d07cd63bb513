package repository

import (
	"context"
	"time"

	"postboard/internal/model"

	"gorm.io/gorm/clause"
)

type SubPostRepository interface {
	Create(ctx context.Context, subPost *model.SubPost) error
	FindByID(ctx context.Context, id uint) (*model.SubPost, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*model.SubPost, error)
	FindByPostID(ctx context.Context, postID uint) ([]*model.SubPost, error)
	List(ctx context.Context, limit, offset int) ([]*model.SubPost, int64, error)
	// Update writes title and body only; post and author never change
	Update(ctx context.Context, subPost *model.SubPost) error
	Delete(ctx context.Context, id uint) error
	DeleteByPostAndIDs(ctx context.Context, postID uint, ids []uint) error
}

type subPostRepository struct {
	s *store
}

func (r *subPostRepository) Create(ctx context.Context, subPost *model.SubPost) error {
	if err := r.s.conn(ctx).Create(subPost).Error; err != nil {
		return translateError(err)
	}
	r.s.invalidatePosts(subPost.PostID)
	return nil
}

func (r *subPostRepository) FindByID(ctx context.Context, id uint) (*model.SubPost, error) {
	var subPost model.SubPost
	err := r.s.conn(ctx).Where("id = ?", id).First(&subPost).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &subPost, nil
}

func (r *subPostRepository) FindByIDs(ctx context.Context, ids []uint) ([]*model.SubPost, error) {
	subPosts := make([]*model.SubPost, 0, len(ids))
	if len(ids) == 0 {
		return subPosts, nil
	}
	err := r.s.conn(ctx).Where("id IN ?", ids).Order("id ASC").Find(&subPosts).Error
	if err != nil {
		return nil, translateError(err)
	}
	return subPosts, nil
}

// FindByPostID returns the children of a post in creation order
func (r *subPostRepository) FindByPostID(ctx context.Context, postID uint) ([]*model.SubPost, error) {
	subPosts := make([]*model.SubPost, 0)
	err := r.s.conn(ctx).Where("post_id = ?", postID).Order("id ASC").Find(&subPosts).Error
	if err != nil {
		return nil, translateError(err)
	}
	return subPosts, nil
}

func (r *subPostRepository) List(ctx context.Context, limit, offset int) ([]*model.SubPost, int64, error) {
	var count int64
	if err := r.s.conn(ctx).Model(&model.SubPost{}).Count(&count).Error; err != nil {
		return nil, 0, translateError(err)
	}

	subPosts := make([]*model.SubPost, 0)
	if count == 0 || int64(offset) >= count {
		return subPosts, count, nil
	}

	err := r.s.conn(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&subPosts).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return subPosts, count, nil
}

func (r *subPostRepository) Update(ctx context.Context, subPost *model.SubPost) error {
	now := time.Now()
	result := r.s.conn(ctx).Model(&model.SubPost{}).
		Where("id = ?", subPost.ID).
		Updates(map[string]interface{}{
			"title":      subPost.Title,
			"body":       subPost.Body,
			"updated_at": now,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	subPost.UpdatedAt = now
	r.s.invalidatePosts(subPost.PostID)
	return nil
}

func (r *subPostRepository) Delete(ctx context.Context, id uint) error {
	var subPost model.SubPost
	result := r.s.conn(ctx).
		Clauses(returningPostID()).
		Where("id = ?", id).
		Delete(&subPost)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.s.invalidatePosts(subPost.PostID)
	return nil
}

// DeleteByPostAndIDs removes the listed children of postID
func (r *subPostRepository) DeleteByPostAndIDs(ctx context.Context, postID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.s.conn(ctx).
		Where("post_id = ? AND id IN ?", postID, ids).
		Delete(&model.SubPost{}).Error
	if err != nil {
		return translateError(err)
	}

	r.s.invalidatePosts(postID)
	return nil
}

func returningPostID() clause.Returning {
	return clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "post_id"}}}
}
