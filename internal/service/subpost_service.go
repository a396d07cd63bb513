package service

import (
	"context"
	"errors"

	"postboard/internal/model"
	"postboard/internal/repository"
	"postboard/internal/util"
)

type CreateSubPostRequest struct {
	Title string `json:"title" validate:"required,max=100"`
	Body  string `json:"body" validate:"required"`
	Post  uint   `json:"post" validate:"required"`
}

// UpdateSubPostRequest may repeat the parent id but never change it
type UpdateSubPostRequest struct {
	Title *string `json:"title" validate:"omitempty,min=1,max=100"`
	Body  *string `json:"body" validate:"omitempty,min=1"`
	Post  *uint   `json:"post"`
}

type SubPostService interface {
	CreateSubPost(ctx context.Context, userID uint, req CreateSubPostRequest) (*model.SubPost, error)
	GetSubPost(ctx context.Context, id uint) (*model.SubPost, error)
	ListSubPosts(ctx context.Context, limit, offset int) ([]*model.SubPost, int64, error)
	UpdateSubPost(ctx context.Context, userID, id uint, req UpdateSubPostRequest, partial bool) (*model.SubPost, error)
	DeleteSubPost(ctx context.Context, userID, id uint) error
}

type subPostService struct {
	store repository.Store
}

func NewSubPostService(store repository.Store) SubPostService {
	return &subPostService{store: store}
}

// CreateSubPost attaches a new subpost to an existing post; the caller is its author
func (s *subPostService) CreateSubPost(ctx context.Context, userID uint, req CreateSubPostRequest) (*model.SubPost, error) {
	if err := util.Validate(req); err != nil {
		return nil, validationError(err.Error())
	}
	if _, err := ensureUser(ctx, s.store, userID); err != nil {
		return nil, err
	}

	// Validate parent exists
	if _, err := s.store.Posts().FindByID(ctx, req.Post); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrParentMissing
		}
		return nil, internalError("failed to load post", err)
	}

	subPost := &model.SubPost{
		Title:    req.Title,
		Body:     req.Body,
		PostID:   req.Post,
		AuthorID: userID,
	}
	if err := s.store.SubPosts().Create(ctx, subPost); err != nil {
		if errors.Is(err, repository.ErrReferenceMissing) {
			return nil, ErrParentMissing
		}
		return nil, internalError("failed to create sub-post", err)
	}
	return subPost, nil
}

func (s *subPostService) GetSubPost(ctx context.Context, id uint) (*model.SubPost, error) {
	subPost, err := s.store.SubPosts().FindByID(ctx, id)
	if err != nil {
		return nil, subPostLookupError(err)
	}
	return subPost, nil
}

func (s *subPostService) ListSubPosts(ctx context.Context, limit, offset int) ([]*model.SubPost, int64, error) {
	subPosts, count, err := s.store.SubPosts().List(ctx, limit, offset)
	if err != nil {
		return nil, 0, internalError("failed to list sub-posts", err)
	}
	return subPosts, count, nil
}

func (s *subPostService) UpdateSubPost(ctx context.Context, userID, id uint, req UpdateSubPostRequest, partial bool) (*model.SubPost, error) {
	var messages []string
	if err := util.Validator().Struct(req); err != nil {
		messages = util.ValidationMessages(err)
	}
	if !partial {
		if req.Title == nil {
			messages = append(messages, "title: This field is required.")
		}
		if req.Body == nil {
			messages = append(messages, "body: This field is required.")
		}
	}
	if len(messages) > 0 {
		return nil, validationError(joinMessages(messages))
	}

	var subPost *model.SubPost
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		subPost, err = tx.SubPosts().FindByID(ctx, id)
		if err != nil {
			return subPostLookupError(err)
		}
		if subPost.AuthorID != userID {
			return ErrNotPostAuthor
		}
		if req.Post != nil && *req.Post != subPost.PostID {
			return ErrPostReassigned
		}

		if req.Title != nil {
			subPost.Title = *req.Title
		}
		if req.Body != nil {
			subPost.Body = *req.Body
		}
		return tx.SubPosts().Update(ctx, subPost)
	})
	if err != nil {
		return nil, asServiceError("failed to update sub-post", err)
	}
	return subPost, nil
}

func (s *subPostService) DeleteSubPost(ctx context.Context, userID, id uint) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		subPost, err := tx.SubPosts().FindByID(ctx, id)
		if err != nil {
			return subPostLookupError(err)
		}
		if subPost.AuthorID != userID {
			return ErrNotPostAuthor
		}
		return tx.SubPosts().Delete(ctx, id)
	})
	if err != nil {
		return asServiceError("failed to delete sub-post", err)
	}
	return nil
}

func subPostLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSubPostNotFound
	}
	return internalError("failed to load sub-post", err)
}
