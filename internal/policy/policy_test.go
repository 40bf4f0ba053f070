package policy

import (
	"testing"

	"github.com/newsdesk/apiserver/types"
	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		action Action
		want   bool
	}{
		{"admin creates articles", types.RoleAdmin, ActionCreateArticle, true},
		{"editor creates articles", types.RoleEditor, ActionCreateArticle, true},
		{"author creates articles", types.RoleAuthor, ActionCreateArticle, true},
		{"premium cannot create", types.RolePremium, ActionCreateArticle, false},
		{"standard cannot create", types.RoleStandard, ActionCreateArticle, false},

		{"admin changes status", types.RoleAdmin, ActionChangeStatus, true},
		{"editor changes status", types.RoleEditor, ActionChangeStatus, true},
		{"author cannot change status", types.RoleAuthor, ActionChangeStatus, false},

		{"admin deletes", types.RoleAdmin, ActionDeleteArticle, true},
		{"editor cannot delete", types.RoleEditor, ActionDeleteArticle, false},
		{"author cannot delete", types.RoleAuthor, ActionDeleteArticle, false},

		{"premium downloads", types.RolePremium, ActionDownloadArticle, true},
		{"author downloads", types.RoleAuthor, ActionDownloadArticle, true},
		{"standard cannot download", types.RoleStandard, ActionDownloadArticle, false},

		{"editor manages categories", types.RoleEditor, ActionManageCategories, true},
		{"author cannot manage categories", types.RoleAuthor, ActionManageCategories, false},

		{"admin manages users", types.RoleAdmin, ActionManageUsers, true},
		{"editor cannot manage users", types.RoleEditor, ActionManageUsers, false},

		{"admin views stats", types.RoleAdmin, ActionViewStats, true},
		{"editor cannot view stats", types.RoleEditor, ActionViewStats, false},

		{"unknown role denied", "superuser", ActionCreateArticle, false},
		{"empty role denied", "", ActionDownloadArticle, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.action))
		})
	}
}

func TestAllow(t *testing.T) {
	assert.NoError(t, Allow(types.RoleAdmin, ActionDeleteArticle))
	assert.ErrorIs(t, Allow(types.RoleEditor, ActionDeleteArticle), ErrForbidden)
}

func TestCanCreatePublished(t *testing.T) {
	assert.True(t, CanCreatePublished(types.RoleAdmin))
	assert.True(t, CanCreatePublished(types.RoleEditor))
	assert.False(t, CanCreatePublished(types.RoleAuthor))
	assert.False(t, CanCreatePublished(types.RolePremium))
	assert.False(t, CanCreatePublished(types.RoleStandard))
}

func TestCanReadArticle(t *testing.T) {
	published := types.Article{ID: 1, Status: types.StatusPublished, AuthorID: 7}
	draft := types.Article{ID: 2, Status: types.StatusDraft, AuthorID: 7}

	owner := types.User{ID: 7, Role: types.RoleAuthor}
	otherAuthor := types.User{ID: 8, Role: types.RoleAuthor}
	standard := types.User{ID: 9, Role: types.RoleStandard}
	premium := types.User{ID: 10, Role: types.RolePremium}
	editor := types.User{ID: 11, Role: types.RoleEditor}
	admin := types.User{ID: 12, Role: types.RoleAdmin}

	// Published articles are readable by everyone authenticated.
	for _, user := range []types.User{owner, otherAuthor, standard, premium, editor, admin} {
		assert.NoError(t, CanReadArticle(user, published), "role %s", user.Role)
	}

	assert.NoError(t, CanReadArticle(admin, draft))
	assert.NoError(t, CanReadArticle(editor, draft))
	assert.NoError(t, CanReadArticle(owner, draft))
	assert.ErrorIs(t, CanReadArticle(otherAuthor, draft), ErrForbidden)
	assert.ErrorIs(t, CanReadArticle(standard, draft), ErrForbidden)
	assert.ErrorIs(t, CanReadArticle(premium, draft), ErrForbidden)
}

func TestCanUpdateArticle(t *testing.T) {
	article := types.Article{ID: 1, Status: types.StatusDraft, AuthorID: 7}

	owner := types.User{ID: 7, Role: types.RoleAuthor}
	otherAuthor := types.User{ID: 8, Role: types.RoleAuthor}
	editor := types.User{ID: 11, Role: types.RoleEditor}
	admin := types.User{ID: 12, Role: types.RoleAdmin}
	standard := types.User{ID: 9, Role: types.RoleStandard}

	assert.NoError(t, CanUpdateArticle(admin, article, true))
	assert.NoError(t, CanUpdateArticle(editor, article, true))
	assert.NoError(t, CanUpdateArticle(owner, article, false))

	// Ownership does not grant status transitions.
	assert.ErrorIs(t, CanUpdateArticle(owner, article, true), ErrAuthorStatusChange)

	// Non-owners are rejected on ownership before status is considered.
	assert.ErrorIs(t, CanUpdateArticle(otherAuthor, article, true), ErrForbidden)
	assert.ErrorIs(t, CanUpdateArticle(otherAuthor, article, false), ErrForbidden)
	assert.ErrorIs(t, CanUpdateArticle(standard, article, false), ErrForbidden)
}

func TestCanDeleteArticle(t *testing.T) {
	assert.NoError(t, CanDeleteArticle(types.User{ID: 1, Role: types.RoleAdmin}))
	assert.ErrorIs(t, CanDeleteArticle(types.User{ID: 2, Role: types.RoleEditor}), ErrForbidden)
	assert.ErrorIs(t, CanDeleteArticle(types.User{ID: 7, Role: types.RoleAuthor}), ErrForbidden)
}

func TestListingVisibility(t *testing.T) {
	assert.Equal(t, Visibility{ForcePublished: true}, ListingVisibility(nil))
	assert.Equal(t, Visibility{}, ListingVisibility(&types.User{Role: types.RoleAdmin}))
	assert.Equal(t, Visibility{}, ListingVisibility(&types.User{Role: types.RoleEditor}))
	assert.Equal(t, Visibility{OwnOnly: true}, ListingVisibility(&types.User{Role: types.RoleAuthor}))
	assert.Equal(t, Visibility{ForcePublished: true}, ListingVisibility(&types.User{Role: types.RolePremium}))
	assert.Equal(t, Visibility{ForcePublished: true}, ListingVisibility(&types.User{Role: types.RoleStandard}))
}

func TestCanManageUser(t *testing.T) {
	admin := types.User{ID: 1, Role: types.RoleAdmin}
	user := types.User{ID: 5, Role: types.RoleStandard}

	assert.NoError(t, CanManageUser(admin, 5))
	assert.NoError(t, CanManageUser(user, 5))
	assert.ErrorIs(t, CanManageUser(user, 6), ErrForbidden)
}
