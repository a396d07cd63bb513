package service

import (
	"testing"

	"postboard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func currentSubPosts(ids ...uint) []*model.SubPost {
	subs := make([]*model.SubPost, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, &model.SubPost{ID: id, PostID: 1, AuthorID: 9, Title: "old", Body: "old"})
	}
	return subs
}

func TestReconcileSubPosts(t *testing.T) {
	plan, err := ReconcileSubPosts(currentSubPosts(1, 2, 3), []SubPostInput{
		{ID: 2, Title: "kept", Body: "kept body"},
		{Title: "new", Body: "new body"},
	})
	require.NoError(t, err)

	require.Len(t, plan.Update, 1)
	assert.Equal(t, uint(2), plan.Update[0].ID)
	assert.Equal(t, "kept", plan.Update[0].Title)
	assert.Equal(t, uint(1), plan.Update[0].PostID, "parent is preserved")
	assert.Equal(t, uint(9), plan.Update[0].AuthorID, "author is preserved")

	require.Len(t, plan.Create, 1)
	assert.Equal(t, "new", plan.Create[0].Title)

	assert.Equal(t, []uint{1, 3}, plan.Delete)
}

func TestReconcileSubPostsEmptyDesiredDeletesAll(t *testing.T) {
	plan, err := ReconcileSubPosts(currentSubPosts(4, 5), nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Update)
	assert.Equal(t, []uint{4, 5}, plan.Delete)
}

func TestReconcileSubPostsUnknownIDIsCreated(t *testing.T) {
	plan, err := ReconcileSubPosts(currentSubPosts(1), []SubPostInput{{ID: 77, Title: "t", Body: "b"}})
	require.NoError(t, err)
	require.Len(t, plan.Create, 1)
	assert.Equal(t, []uint{77}, plan.requestedIDs())
	assert.Equal(t, []uint{1}, plan.Delete)
}

func TestReconcileSubPostsDuplicateIDs(t *testing.T) {
	_, err := ReconcileSubPosts(currentSubPosts(1), []SubPostInput{
		{ID: 1, Title: "a", Body: "a"},
		{ID: 1, Title: "b", Body: "b"},
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}
