package repository

import (
	"context"
	"log"
	"sync"

	"postboard/internal/model"
	"postboard/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store groups the repositories and runs them inside a shared transaction
type Store interface {
	Users() UserRepository
	Posts() PostRepository
	SubPosts() SubPostRepository
	Likes() LikeRepository
	Views() ViewRepository

	// Transaction runs fn against a Store bound to one database transaction.
	// Cache invalidations are deferred until commit. Nested calls reuse the
	// outer transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type store struct {
	db    *gorm.DB
	cache util.Cache
	tx    *txState
}

type txState struct {
	mu      sync.Mutex
	postIDs []uint
}

// NewStore creates a Store. cache may be nil.
func NewStore(db *gorm.DB, cache util.Cache) Store {
	return &store{db: db, cache: cache}
}

// AutoMigrate creates or updates the schema
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(model.AllModels()...)
}

func (s *store) Users() UserRepository       { return &userRepository{s: s} }
func (s *store) Posts() PostRepository       { return &postRepository{s: s} }
func (s *store) SubPosts() SubPostRepository { return &subPostRepository{s: s} }
func (s *store) Likes() LikeRepository       { return &likeRepository{s: s} }
func (s *store) Views() ViewRepository       { return &viewRepository{s: s} }

func (s *store) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	state := &txState{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{db: tx, cache: s.cache, tx: state})
	})
	if err != nil {
		return err
	}

	s.invalidatePosts(state.postIDs...)
	return nil
}

// conn returns the db handle bound to ctx
func (s *store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// readCache returns nil inside a transaction so reads see uncommitted rows
func (s *store) readCache() util.Cache {
	if s.tx != nil {
		return nil
	}
	return s.cache
}

// invalidatePosts drops cached post details. Inside a transaction the ids
// are queued and flushed after commit.
func (s *store) invalidatePosts(ids ...uint) {
	if len(ids) == 0 {
		return
	}
	if s.tx != nil {
		s.tx.mu.Lock()
		s.tx.postIDs = append(s.tx.postIDs, ids...)
		s.tx.mu.Unlock()
		return
	}
	if s.cache == nil {
		return
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		// A new version makes fills that began before this write unreadable
		if err := s.cache.Set(postVersionKey(id), uuid.NewString(), postVersionExpiration); err != nil {
			log.Printf("Warning: failed to bump cache version of post %d: %v", id, err)
		}
		keys = append(keys, postCacheKey(id))
	}
	if err := s.cache.Delete(keys...); err != nil {
		log.Printf("Warning: failed to invalidate cache keys %v: %v", keys, err)
	}
}
