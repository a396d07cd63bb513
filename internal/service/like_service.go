package service

import (
	"context"
	"errors"

	"postboard/internal/model"
	"postboard/internal/repository"
)

type LikeService interface {
	// LikePost records a like and returns the post's new like count
	LikePost(ctx context.Context, userID, postID uint) (int, error)
}

type likeService struct {
	store     repository.Store
	publisher EventPublisher
}

func NewLikeService(store repository.Store, publisher EventPublisher) LikeService {
	return &likeService{
		store:     store,
		publisher: publisher,
	}
}

// LikePost inserts the like and bumps the counter in one transaction
func (s *likeService) LikePost(ctx context.Context, userID, postID uint) (int, error) {
	// Validate user exists
	if _, err := ensureUser(ctx, s.store, userID); err != nil {
		return 0, err
	}

	// Validate post exists
	if _, err := s.store.Posts().FindByID(ctx, postID); err != nil {
		return 0, postLookupError(err)
	}

	var likes int
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		created, err := tx.Likes().CreateIfAbsent(ctx, &model.Like{UserID: userID, PostID: postID})
		if err != nil {
			return counterWriteError(err)
		}
		if !created {
			return ErrAlreadyLiked
		}

		likes, err = tx.Posts().IncrementLikes(ctx, postID)
		if err != nil {
			return counterWriteError(err)
		}
		return nil
	})
	if err != nil {
		return 0, asServiceError("failed to like post", err)
	}

	publish(s.publisher, CounterEvent{Type: EventPostLiked, PostID: postID, UserID: userID, Likes: likes})
	return likes, nil
}

// counterWriteError maps a post vanishing mid-request onto not found
func counterWriteError(err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrReferenceMissing) {
		return ErrPostNotFound
	}
	return err
}
