package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"postboard/internal/model"
	"postboard/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostRepository interface {
	// Create inserts the post together with its SubPosts
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id uint) (*model.Post, error)
	// FindByIDForUpdate locks the post row until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Post, error)
	List(ctx context.Context, limit, offset int) ([]*model.Post, int64, error)
	// Update writes title and body only
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id uint) error
	IncrementLikes(ctx context.Context, id uint) (int, error)
	IncrementViews(ctx context.Context, id uint) (int, error)
}

type postRepository struct {
	s *store
}

const (
	postCachePrefix     = "post:"
	postCacheExpiration = 15 * time.Minute
	// Outlives every entry written under it
	postVersionExpiration = 2 * postCacheExpiration
)

func postCacheKey(id uint) string {
	return fmt.Sprintf("%s%d", postCachePrefix, id)
}

func postVersionKey(id uint) string {
	return fmt.Sprintf("%s%d:version", postCachePrefix, id)
}

// cachedPost is a post detail tagged with the cache version it was read under
type cachedPost struct {
	Version string      `json:"version"`
	Post    *model.Post `json:"post"`
}

func preloadSubPosts(db *gorm.DB) *gorm.DB {
	return db.Preload("SubPosts", func(db *gorm.DB) *gorm.DB {
		return db.Order("sub_posts.id ASC")
	})
}

// Create creates a post with its subposts
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	if err := r.s.conn(ctx).Create(post).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// FindByID finds a post with its subposts, checking cache first
func (r *postRepository) FindByID(ctx context.Context, id uint) (*model.Post, error) {
	// Read the version before the row so a concurrent write makes this fill stale
	version := r.cacheVersion(id)
	if cached, err := r.getFromCache(id, version); err == nil && cached != nil {
		return cached, nil
	}

	var post model.Post
	err := preloadSubPosts(r.s.conn(ctx)).Where("id = ?", id).First(&post).Error
	if err != nil {
		return nil, translateError(err)
	}

	r.cachePost(&post, version)
	return &post, nil
}

func (r *postRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	err := r.s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &post, nil
}

// List returns a page of posts, newest first, with the total count
func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*model.Post, int64, error) {
	var count int64
	if err := r.s.conn(ctx).Model(&model.Post{}).Count(&count).Error; err != nil {
		return nil, 0, translateError(err)
	}

	posts := make([]*model.Post, 0)
	if count == 0 || int64(offset) >= count {
		return posts, count, nil
	}

	err := preloadSubPosts(r.s.conn(ctx)).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return posts, count, nil
}

// Update updates the editable columns and invalidates the cached detail
func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	result := r.s.conn(ctx).Model(&model.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"title":      post.Title,
			"body":       post.Body,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.s.invalidatePosts(post.ID)
	return nil
}

// Delete removes a post; subposts, likes and views cascade
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	result := r.s.conn(ctx).Delete(&model.Post{}, id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.s.invalidatePosts(id)
	return nil
}

func (r *postRepository) IncrementLikes(ctx context.Context, id uint) (int, error) {
	post, err := r.increment(ctx, id, "likes")
	if err != nil {
		return 0, err
	}
	return post.Likes, nil
}

func (r *postRepository) IncrementViews(ctx context.Context, id uint) (int, error) {
	post, err := r.increment(ctx, id, "views_count")
	if err != nil {
		return 0, err
	}
	return post.ViewsCount, nil
}

// increment runs UPDATE posts SET col = col + 1 ... RETURNING col
func (r *postRepository) increment(ctx context.Context, id uint, column string) (*model.Post, error) {
	var post model.Post
	result := r.s.conn(ctx).Model(&post).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: column}}}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	r.s.invalidatePosts(id)
	return &post, nil
}

// Cache helpers

// cacheVersion returns the current version of a post's cache entry; "" when unset
func (r *postRepository) cacheVersion(id uint) string {
	cache := r.s.readCache()
	if cache == nil {
		return ""
	}
	version, err := cache.Get(postVersionKey(id))
	if err != nil {
		return ""
	}
	return version
}

func (r *postRepository) cachePost(post *model.Post, version string) {
	cache := r.s.readCache()
	if cache == nil {
		return
	}

	entryJSON, err := json.Marshal(cachedPost{Version: version, Post: post})
	if err != nil {
		return
	}

	if err := cache.Set(postCacheKey(post.ID), string(entryJSON), postCacheExpiration); err != nil {
		log.Printf("Warning: failed to cache post %d: %v", post.ID, err)
	}
}

// getFromCache returns the cached post only if it was written under version
func (r *postRepository) getFromCache(id uint, version string) (*model.Post, error) {
	cache := r.s.readCache()
	if cache == nil {
		return nil, fmt.Errorf("cache not available")
	}

	cached, err := cache.Get(postCacheKey(id))
	if err != nil {
		return nil, err
	}

	var entry cachedPost
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		return nil, err
	}
	if entry.Post == nil || entry.Version != version {
		return nil, util.ErrCacheMiss
	}
	if entry.Post.SubPosts == nil {
		entry.Post.SubPosts = []model.SubPost{}
	}

	return entry.Post, nil
}
