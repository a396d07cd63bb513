package service

import (
	"fmt"
	"sort"

	"postboard/internal/model"
)

// SubPostInput is one entry of a post's desired subpost list. ID is zero for
// new entries.
type SubPostInput struct {
	ID    uint   `json:"id,omitempty"`
	Title string `json:"title" validate:"required,max=100"`
	Body  string `json:"body" validate:"required"`
}

// SubPostPlan is the difference between a post's current and desired children
type SubPostPlan struct {
	// Create holds desired entries that match no current child. An entry may
	// still carry the ID the client sent.
	Create []SubPostInput
	// Update holds current children with the desired title and body applied
	Update []model.SubPost
	// Delete holds ids of current children absent from the desired list
	Delete []uint
}

// ReconcileSubPosts diffs desired against current, keyed by id. It does not
// touch storage.
func ReconcileSubPosts(current []*model.SubPost, desired []SubPostInput) (SubPostPlan, error) {
	byID := make(map[uint]*model.SubPost, len(current))
	for _, sp := range current {
		byID[sp.ID] = sp
	}

	var plan SubPostPlan
	seen := make(map[uint]bool, len(desired))
	for i, in := range desired {
		if in.ID == 0 {
			plan.Create = append(plan.Create, in)
			continue
		}
		if seen[in.ID] {
			return SubPostPlan{}, validationError(fmt.Sprintf("subposts[%d].id: Duplicate sub-post id %d.", i, in.ID))
		}
		seen[in.ID] = true

		existing, ok := byID[in.ID]
		if !ok {
			plan.Create = append(plan.Create, in)
			continue
		}
		updated := *existing
		updated.Title = in.Title
		updated.Body = in.Body
		plan.Update = append(plan.Update, updated)
	}

	for id := range byID {
		if !seen[id] {
			plan.Delete = append(plan.Delete, id)
		}
	}
	sort.Slice(plan.Delete, func(i, j int) bool { return plan.Delete[i] < plan.Delete[j] })

	return plan, nil
}

// requestedIDs returns the non-zero ids of entries to be created
func (p SubPostPlan) requestedIDs() []uint {
	var ids []uint
	for _, in := range p.Create {
		if in.ID != 0 {
			ids = append(ids, in.ID)
		}
	}
	return ids
}
