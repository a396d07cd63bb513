package service

import (
	"context"

	"postboard/internal/model"
	"postboard/internal/repository"
)

type PostViewService interface {
	// TrackView counts the first view of a post per user and returns the new view count
	TrackView(ctx context.Context, userID, postID uint) (int, error)
}

type postViewService struct {
	store     repository.Store
	publisher EventPublisher
}

func NewPostViewService(store repository.Store, publisher EventPublisher) PostViewService {
	return &postViewService{
		store:     store,
		publisher: publisher,
	}
}

// TrackView tracks a view for a post; repeat views are rejected
func (s *postViewService) TrackView(ctx context.Context, userID, postID uint) (int, error) {
	// Validate user exists
	if _, err := ensureUser(ctx, s.store, userID); err != nil {
		return 0, err
	}

	// Validate post exists
	if _, err := s.store.Posts().FindByID(ctx, postID); err != nil {
		return 0, postLookupError(err)
	}

	var views int
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		created, err := tx.Views().CreateIfAbsent(ctx, &model.View{UserID: userID, PostID: postID})
		if err != nil {
			return counterWriteError(err)
		}
		if !created {
			return ErrAlreadyViewed
		}

		views, err = tx.Posts().IncrementViews(ctx, postID)
		if err != nil {
			return counterWriteError(err)
		}
		return nil
	})
	if err != nil {
		return 0, asServiceError("failed to track view", err)
	}

	publish(s.publisher, CounterEvent{Type: EventPostViewed, PostID: postID, UserID: userID, ViewsCount: views})
	return views, nil
}
