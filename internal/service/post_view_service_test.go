package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackViewConcurrentDistinctUsers(t *testing.T) {
	store := newMemStore()
	alice := store.seedUser("alice")
	bob := store.seedUser("bob")
	postID := seedPost(t, store, alice.ID)
	svc := NewPostViewService(store, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []uint{alice.ID, bob.ID} {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			_, errs[i] = svc.TrackView(context.Background(), userID, postID)
		}(i, userID)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	post, err := store.Posts().FindByID(context.Background(), postID)
	require.NoError(t, err)
	assert.Equal(t, 2, post.ViewsCount)

	for _, userID := range []uint{alice.ID, bob.ID} {
		assert.True(t, store.hasViewed(userID, postID))
	}
}

func TestTrackViewTwice(t *testing.T) {
	store := newMemStore()
	alice := store.seedUser("alice")
	postID := seedPost(t, store, alice.ID)
	svc := NewPostViewService(store, nil)

	views, err := svc.TrackView(context.Background(), alice.ID, postID)
	require.NoError(t, err)
	assert.Equal(t, 1, views)

	_, err = svc.TrackView(context.Background(), alice.ID, postID)
	assert.ErrorIs(t, err, ErrAlreadyViewed)

	post, err := store.Posts().FindByID(context.Background(), postID)
	require.NoError(t, err)
	assert.Equal(t, 1, post.ViewsCount)

	_, err = svc.TrackView(context.Background(), alice.ID, postID+50)
	assert.ErrorIs(t, err, ErrPostNotFound)
}
