package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"postboard/internal/model"
	"postboard/internal/repository"
)

// memStore is an in-memory repository.Store. Transactions hold a global lock
// and restore a snapshot on error.
type memStore struct {
	db   *memDB
	inTx bool
}

type memDB struct {
	mu    sync.Mutex
	state *memState

	// postCreateFailAt makes the n-th Posts().Create call fail (1-based)
	postCreateFailAt int
	postCreateCalls  int
}

type userPost struct {
	userID, postID uint
}

type memState struct {
	nextID   uint
	users    map[uint]model.User
	posts    map[uint]model.Post
	subPosts map[uint]model.SubPost
	likes    map[userPost]model.Like
	views    map[userPost]model.View
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{db: &memDB{state: &memState{
		users:    map[uint]model.User{},
		posts:    map[uint]model.Post{},
		subPosts: map[uint]model.SubPost{},
		likes:    map[userPost]model.Like{},
		views:    map[userPost]model.View{},
	}}}
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:   s.nextID,
		users:    make(map[uint]model.User, len(s.users)),
		posts:    make(map[uint]model.Post, len(s.posts)),
		subPosts: make(map[uint]model.SubPost, len(s.subPosts)),
		likes:    make(map[userPost]model.Like, len(s.likes)),
		views:    make(map[userPost]model.View, len(s.views)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	for k, v := range s.subPosts {
		c.subPosts[k] = v
	}
	for k, v := range s.likes {
		c.likes[k] = v
	}
	for k, v := range s.views {
		c.views[k] = v
	}
	return c
}

func (s *memState) id() uint {
	s.nextID++
	return s.nextID
}

func (m *memStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.db.mu.Lock()
	return m.db.mu.Unlock
}

func (m *memStore) Users() repository.UserRepository       { return memUsers{m} }
func (m *memStore) Posts() repository.PostRepository       { return memPosts{m} }
func (m *memStore) SubPosts() repository.SubPostRepository { return memSubPosts{m} }
func (m *memStore) Likes() repository.LikeRepository       { return memLikes{m} }
func (m *memStore) Views() repository.ViewRepository       { return memViews{m} }

func (m *memStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	snapshot := m.db.state.clone()
	if err := fn(&memStore{db: m.db, inTx: true}); err != nil {
		m.db.state = snapshot
		return err
	}
	return nil
}

// seedUser inserts a user directly
func (m *memStore) seedUser(username string) model.User {
	defer m.lock()()
	u := model.User{ID: m.db.state.id(), Username: username, PasswordHash: "x", CreatedAt: time.Now()}
	m.db.state.users[u.ID] = u
	return u
}

func (m *memStore) counts() (posts, subPosts, likes, views int) {
	defer m.lock()()
	st := m.db.state
	return len(st.posts), len(st.subPosts), len(st.likes), len(st.views)
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(ctx context.Context, user *model.User) error {
	defer r.m.lock()()
	st := r.m.db.state
	for _, u := range st.users {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	user.ID = st.id()
	user.CreatedAt = time.Now()
	st.users[user.ID] = *user
	return nil
}

func (r memUsers) FindByID(ctx context.Context, id uint) (*model.User, error) {
	defer r.m.lock()()
	u, ok := r.m.db.state.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	defer r.m.lock()()
	for _, u := range r.m.db.state.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memPosts struct{ m *memStore }

func (r memPosts) Create(ctx context.Context, post *model.Post) error {
	defer r.m.lock()()
	r.m.db.postCreateCalls++
	if r.m.db.postCreateFailAt > 0 && r.m.db.postCreateCalls == r.m.db.postCreateFailAt {
		return errInjected
	}

	st := r.m.db.state
	now := time.Now()
	post.ID = st.id()
	post.CreatedAt, post.UpdatedAt = now, now
	for i := range post.SubPosts {
		sp := &post.SubPosts[i]
		sp.ID = st.id()
		sp.PostID = post.ID
		sp.CreatedAt, sp.UpdatedAt = now, now
		st.subPosts[sp.ID] = *sp
	}
	stored := *post
	stored.SubPosts = nil
	st.posts[post.ID] = stored
	return nil
}

func (r memPosts) withChildren(p model.Post) *model.Post {
	p.SubPosts = []model.SubPost{}
	for _, sp := range r.m.db.state.subPosts {
		if sp.PostID == p.ID {
			p.SubPosts = append(p.SubPosts, sp)
		}
	}
	sort.Slice(p.SubPosts, func(i, j int) bool { return p.SubPosts[i].ID < p.SubPosts[j].ID })
	return &p
}

func (r memPosts) FindByID(ctx context.Context, id uint) (*model.Post, error) {
	defer r.m.lock()()
	p, ok := r.m.db.state.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withChildren(p), nil
}

func (r memPosts) FindByIDForUpdate(ctx context.Context, id uint) (*model.Post, error) {
	defer r.m.lock()()
	p, ok := r.m.db.state.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memPosts) List(ctx context.Context, limit, offset int) ([]*model.Post, int64, error) {
	defer r.m.lock()()
	all := make([]model.Post, 0, len(r.m.db.state.posts))
	for _, p := range r.m.db.state.posts {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	posts := make([]*model.Post, 0)
	for i := offset; i < len(all) && i < offset+limit; i++ {
		posts = append(posts, r.withChildren(all[i]))
	}
	return posts, int64(len(all)), nil
}

func (r memPosts) Update(ctx context.Context, post *model.Post) error {
	defer r.m.lock()()
	p, ok := r.m.db.state.posts[post.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Title, p.Body, p.UpdatedAt = post.Title, post.Body, time.Now()
	r.m.db.state.posts[post.ID] = p
	return nil
}

func (r memPosts) Delete(ctx context.Context, id uint) error {
	defer r.m.lock()()
	st := r.m.db.state
	if _, ok := st.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(st.posts, id)
	for k, sp := range st.subPosts {
		if sp.PostID == id {
			delete(st.subPosts, k)
		}
	}
	for k := range st.likes {
		if k.postID == id {
			delete(st.likes, k)
		}
	}
	for k := range st.views {
		if k.postID == id {
			delete(st.views, k)
		}
	}
	return nil
}

func (r memPosts) IncrementLikes(ctx context.Context, id uint) (int, error) {
	defer r.m.lock()()
	p, ok := r.m.db.state.posts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	p.Likes++
	r.m.db.state.posts[id] = p
	return p.Likes, nil
}

func (r memPosts) IncrementViews(ctx context.Context, id uint) (int, error) {
	defer r.m.lock()()
	p, ok := r.m.db.state.posts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	p.ViewsCount++
	r.m.db.state.posts[id] = p
	return p.ViewsCount, nil
}

type memSubPosts struct{ m *memStore }

func (r memSubPosts) Create(ctx context.Context, subPost *model.SubPost) error {
	defer r.m.lock()()
	st := r.m.db.state
	if _, ok := st.posts[subPost.PostID]; !ok {
		return repository.ErrReferenceMissing
	}
	now := time.Now()
	subPost.ID = st.id()
	subPost.CreatedAt, subPost.UpdatedAt = now, now
	st.subPosts[subPost.ID] = *subPost
	return nil
}

func (r memSubPosts) FindByID(ctx context.Context, id uint) (*model.SubPost, error) {
	defer r.m.lock()()
	sp, ok := r.m.db.state.subPosts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sp, nil
}

func (r memSubPosts) FindByIDs(ctx context.Context, ids []uint) ([]*model.SubPost, error) {
	defer r.m.lock()()
	out := make([]*model.SubPost, 0)
	for _, id := range ids {
		if sp, ok := r.m.db.state.subPosts[id]; ok {
			sp := sp
			out = append(out, &sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memSubPosts) FindByPostID(ctx context.Context, postID uint) ([]*model.SubPost, error) {
	defer r.m.lock()()
	out := make([]*model.SubPost, 0)
	for _, sp := range r.m.db.state.subPosts {
		if sp.PostID == postID {
			sp := sp
			out = append(out, &sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memSubPosts) List(ctx context.Context, limit, offset int) ([]*model.SubPost, int64, error) {
	defer r.m.lock()()
	all := make([]model.SubPost, 0, len(r.m.db.state.subPosts))
	for _, sp := range r.m.db.state.subPosts {
		all = append(all, sp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	out := make([]*model.SubPost, 0)
	for i := offset; i < len(all) && i < offset+limit; i++ {
		sp := all[i]
		out = append(out, &sp)
	}
	return out, int64(len(all)), nil
}

func (r memSubPosts) Update(ctx context.Context, subPost *model.SubPost) error {
	defer r.m.lock()()
	sp, ok := r.m.db.state.subPosts[subPost.ID]
	if !ok {
		return repository.ErrNotFound
	}
	sp.Title, sp.Body, sp.UpdatedAt = subPost.Title, subPost.Body, time.Now()
	r.m.db.state.subPosts[sp.ID] = sp
	return nil
}

func (r memSubPosts) Delete(ctx context.Context, id uint) error {
	defer r.m.lock()()
	if _, ok := r.m.db.state.subPosts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.m.db.state.subPosts, id)
	return nil
}

func (r memSubPosts) DeleteByPostAndIDs(ctx context.Context, postID uint, ids []uint) error {
	defer r.m.lock()()
	for _, id := range ids {
		if sp, ok := r.m.db.state.subPosts[id]; ok && sp.PostID == postID {
			delete(r.m.db.state.subPosts, id)
		}
	}
	return nil
}

type memLikes struct{ m *memStore }

func (r memLikes) CreateIfAbsent(ctx context.Context, like *model.Like) (bool, error) {
	defer r.m.lock()()
	st := r.m.db.state
	if _, ok := st.posts[like.PostID]; !ok {
		return false, repository.ErrReferenceMissing
	}
	key := userPost{like.UserID, like.PostID}
	if _, ok := st.likes[key]; ok {
		return false, nil
	}
	like.ID = st.id()
	st.likes[key] = *like
	return true, nil
}

type memViews struct{ m *memStore }

func (r memViews) CreateIfAbsent(ctx context.Context, view *model.View) (bool, error) {
	defer r.m.lock()()
	st := r.m.db.state
	if _, ok := st.posts[view.PostID]; !ok {
		return false, repository.ErrReferenceMissing
	}
	key := userPost{view.UserID, view.PostID}
	if _, ok := st.views[key]; ok {
		return false, nil
	}
	view.ID = st.id()
	st.views[key] = *view
	return true, nil
}

func (m *memStore) likeCount(postID uint) int64 {
	defer m.lock()()
	var n int64
	for k := range m.db.state.likes {
		if k.postID == postID {
			n++
		}
	}
	return n
}

func (m *memStore) hasViewed(userID, postID uint) bool {
	defer m.lock()()
	_, ok := m.db.state.views[userPost{userID, postID}]
	return ok
}
