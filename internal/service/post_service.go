package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"postboard/internal/model"
	"postboard/internal/repository"
	"postboard/internal/util"
)

type PostService interface {
	CreatePost(ctx context.Context, userID uint, req CreatePostRequest) (*model.Post, error)
	// CreatePosts creates every post or none
	CreatePosts(ctx context.Context, userID uint, reqs []CreatePostRequest) ([]*model.Post, error)
	GetPost(ctx context.Context, postID uint) (*model.Post, error)
	ListPosts(ctx context.Context, limit, offset int) ([]*model.Post, int64, error)
	// UpdatePost applies a full (PUT) or partial (PATCH) update and merges subposts
	UpdatePost(ctx context.Context, userID, postID uint, req UpdatePostRequest, partial bool) (*model.Post, error)
	DeletePost(ctx context.Context, userID, postID uint) error
}

type postService struct {
	store     repository.Store
	publisher EventPublisher
}

type CreatePostRequest struct {
	Title    string         `json:"title" validate:"required,max=100"`
	Body     string         `json:"body" validate:"required"`
	SubPosts []SubPostInput `json:"subposts" validate:"required,dive"`
}

// UpdatePostRequest carries the fields present in an update payload.
// SubPostsSet records whether the subposts key was sent at all and
// SubPostsNull whether it was sent as null.
type UpdatePostRequest struct {
	Title        *string        `json:"title" validate:"omitempty,min=1,max=100"`
	Body         *string        `json:"body" validate:"omitempty,min=1"`
	SubPosts     []SubPostInput `json:"subposts" validate:"dive"`
	SubPostsSet  bool           `json:"-"`
	SubPostsNull bool           `json:"-"`
}

func (r *UpdatePostRequest) UnmarshalJSON(data []byte) error {
	type plain UpdatePostRequest
	var raw struct {
		plain
		SubPosts json.RawMessage `json:"subposts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = UpdatePostRequest(raw.plain)
	r.SubPosts = nil
	r.SubPostsSet = raw.SubPosts != nil
	if !r.SubPostsSet {
		return nil
	}
	if bytes.Equal(bytes.TrimSpace(raw.SubPosts), []byte("null")) {
		r.SubPostsNull = true
		return nil
	}
	if err := json.Unmarshal(raw.SubPosts, &r.SubPosts); err != nil {
		return err
	}
	if r.SubPosts == nil {
		r.SubPosts = []SubPostInput{}
	}
	return nil
}

func NewPostService(store repository.Store, publisher EventPublisher) PostService {
	return &postService{
		store:     store,
		publisher: publisher,
	}
}

// CreatePost creates a post and its subposts in one transaction
func (s *postService) CreatePost(ctx context.Context, userID uint, req CreatePostRequest) (*model.Post, error) {
	if err := util.Validate(req); err != nil {
		return nil, validationError(err.Error())
	}

	posts, err := s.create(ctx, userID, []CreatePostRequest{req})
	if err != nil {
		return nil, err
	}
	return posts[0], nil
}

// CreatePosts validates every item before writing any of them
func (s *postService) CreatePosts(ctx context.Context, userID uint, reqs []CreatePostRequest) ([]*model.Post, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyBulk
	}

	var messages []string
	for i, req := range reqs {
		if err := util.Validator().Struct(req); err != nil {
			for _, msg := range util.ValidationMessages(err) {
				messages = append(messages, fmt.Sprintf("[%d].%s", i, msg))
			}
		}
	}
	if len(messages) > 0 {
		return nil, validationError(joinMessages(messages))
	}

	return s.create(ctx, userID, reqs)
}

func (s *postService) create(ctx context.Context, userID uint, reqs []CreatePostRequest) ([]*model.Post, error) {
	if _, err := ensureUser(ctx, s.store, userID); err != nil {
		return nil, err
	}

	posts := make([]*model.Post, 0, len(reqs))
	for _, req := range reqs {
		post := &model.Post{
			Title:    req.Title,
			Body:     req.Body,
			AuthorID: userID,
			SubPosts: make([]model.SubPost, 0, len(req.SubPosts)),
		}
		for _, sp := range req.SubPosts {
			post.SubPosts = append(post.SubPosts, model.SubPost{
				Title:    sp.Title,
				Body:     sp.Body,
				AuthorID: userID,
			})
		}
		posts = append(posts, post)
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		for _, post := range posts {
			if err := tx.Posts().Create(ctx, post); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, internalError("failed to create post", err)
	}

	for _, post := range posts {
		publish(s.publisher, CounterEvent{Type: EventPostCreated, PostID: post.ID, UserID: userID})
	}
	return posts, nil
}

func (s *postService) GetPost(ctx context.Context, postID uint) (*model.Post, error) {
	post, err := s.store.Posts().FindByID(ctx, postID)
	if err != nil {
		return nil, postLookupError(err)
	}
	return post, nil
}

func (s *postService) ListPosts(ctx context.Context, limit, offset int) ([]*model.Post, int64, error) {
	posts, count, err := s.store.Posts().List(ctx, limit, offset)
	if err != nil {
		return nil, 0, internalError("failed to list posts", err)
	}
	return posts, count, nil
}

// UpdatePost updates scalar fields and reconciles the subpost list under a row lock
func (s *postService) UpdatePost(ctx context.Context, userID, postID uint, req UpdatePostRequest, partial bool) (*model.Post, error) {
	if err := validateUpdate(req, partial); err != nil {
		return nil, err
	}
	if _, err := ensureUser(ctx, s.store, userID); err != nil {
		return nil, err
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		post, err := tx.Posts().FindByIDForUpdate(ctx, postID)
		if err != nil {
			return postLookupError(err)
		}
		if post.AuthorID != userID {
			return ErrNotPostAuthor
		}

		if req.Title != nil || req.Body != nil {
			if req.Title != nil {
				post.Title = *req.Title
			}
			if req.Body != nil {
				post.Body = *req.Body
			}
			if err := tx.Posts().Update(ctx, post); err != nil {
				return err
			}
		}

		if req.SubPostsSet {
			return s.mergeSubPosts(ctx, tx, post, req.SubPosts)
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError("failed to update post", err)
	}

	return s.GetPost(ctx, postID)
}

// mergeSubPosts updates matched children, creates new ones and deletes the rest
func (s *postService) mergeSubPosts(ctx context.Context, tx repository.Store, post *model.Post, desired []SubPostInput) error {
	current, err := tx.SubPosts().FindByPostID(ctx, post.ID)
	if err != nil {
		return err
	}

	plan, err := ReconcileSubPosts(current, desired)
	if err != nil {
		return err
	}

	// Ids that exist elsewhere belong to another post
	if ids := plan.requestedIDs(); len(ids) > 0 {
		foreign, err := tx.SubPosts().FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(foreign) > 0 {
			return validationError(fmt.Sprintf("subposts: Sub-post %d belongs to another post.", foreign[0].ID))
		}
	}

	for i := range plan.Update {
		if err := tx.SubPosts().Update(ctx, &plan.Update[i]); err != nil {
			return err
		}
	}
	for _, in := range plan.Create {
		subPost := &model.SubPost{
			Title:    in.Title,
			Body:     in.Body,
			PostID:   post.ID,
			AuthorID: post.AuthorID,
		}
		if err := tx.SubPosts().Create(ctx, subPost); err != nil {
			return err
		}
	}
	return tx.SubPosts().DeleteByPostAndIDs(ctx, post.ID, plan.Delete)
}

// DeletePost deletes a post owned by userID; children cascade
func (s *postService) DeletePost(ctx context.Context, userID, postID uint) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		post, err := tx.Posts().FindByIDForUpdate(ctx, postID)
		if err != nil {
			return postLookupError(err)
		}
		if post.AuthorID != userID {
			return ErrNotPostAuthor
		}
		return tx.Posts().Delete(ctx, postID)
	})
	if err != nil {
		return asServiceError("failed to delete post", err)
	}
	return nil
}

func validateUpdate(req UpdatePostRequest, partial bool) error {
	var messages []string
	if err := util.Validator().Struct(req); err != nil {
		messages = util.ValidationMessages(err)
	}
	if req.SubPostsNull {
		messages = append(messages, "subposts: This field may not be null.")
	}
	if !partial {
		if req.Title == nil {
			messages = append(messages, "title: This field is required.")
		}
		if req.Body == nil {
			messages = append(messages, "body: This field is required.")
		}
		if !req.SubPostsSet {
			messages = append(messages, "subposts: This field is required.")
		}
	}
	if len(messages) > 0 {
		return validationError(joinMessages(messages))
	}
	return nil
}

func postLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPostNotFound
	}
	return internalError("failed to load post", err)
}

// asServiceError passes service errors through and wraps anything else
func asServiceError(detail string, err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return internalError(detail, err)
}

func joinMessages(messages []string) string {
	sort.Strings(messages)
	return strings.Join(messages, "; ")
}
