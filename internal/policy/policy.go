// Package policy is the single place where role and ownership rules are
// decided. Every authorization decision in the handlers and services
// routes through these functions so the rules cannot drift between
// endpoints. All functions are pure: they take the already-resolved
// identity and article and never touch storage.
package policy

import (
	"errors"

	"github.com/newsdesk/apiserver/types"
)

// ErrForbidden is returned when an authenticated user lacks the role or
// ownership required for an action. Handlers map it to 403, distinct
// from unauthenticated (401) and not found (404).
var ErrForbidden = errors.New("forbidden")

// ErrAuthorStatusChange is returned when an author tries to change the
// status of an article they own. Owning the article is not enough;
// status transitions belong to editors and admins.
var ErrAuthorStatusChange = errors.New("authors cannot change article status")

// Action is a role-gated operation with no per-resource component.
type Action string

const (
	ActionCreateArticle    Action = "create_article"
	ActionChangeStatus     Action = "change_status"
	ActionDeleteArticle    Action = "delete_article"
	ActionDownloadArticle  Action = "download_article"
	ActionManageCategories Action = "manage_categories"
	ActionManageUsers      Action = "manage_users"
	ActionViewStats        Action = "view_stats"
)

// roleActions is the role/action decision table. Roles absent from an
// action's set are denied. Note the lattice is not a strict hierarchy:
// editors cannot delete articles, and premium users can download but
// not create.
var roleActions = map[Action]map[string]bool{
	ActionCreateArticle: {
		types.RoleAdmin:  true,
		types.RoleEditor: true,
		types.RoleAuthor: true,
	},
	ActionChangeStatus: {
		types.RoleAdmin:  true,
		types.RoleEditor: true,
	},
	ActionDeleteArticle: {
		types.RoleAdmin: true,
	},
	ActionDownloadArticle: {
		types.RoleAdmin:   true,
		types.RoleEditor:  true,
		types.RoleAuthor:  true,
		types.RolePremium: true,
	},
	ActionManageCategories: {
		types.RoleAdmin:  true,
		types.RoleEditor: true,
	},
	ActionManageUsers: {
		types.RoleAdmin: true,
	},
	ActionViewStats: {
		types.RoleAdmin: true,
	},
}

// Can reports whether the role may perform the action.
func Can(role string, action Action) bool {
	return roleActions[action][role]
}

// Allow returns nil when the role may perform the action, ErrForbidden
// otherwise.
func Allow(role string, action Action) error {
	if !Can(role, action) {
		return ErrForbidden
	}
	return nil
}

// CanCreatePublished reports whether the role may create an article
// directly in the published state. Authors may not; their requested
// status is silently downgraded to draft, never rejected.
func CanCreatePublished(role string) bool {
	return role == types.RoleAdmin || role == types.RoleEditor
}

// CanReadArticle decides read access to a single article. Published
// articles are readable by every authenticated role. Drafts are
// readable by admins, editors, and the owning author only.
func CanReadArticle(user types.User, article types.Article) error {
	if article.Status == types.StatusPublished {
		return nil
	}
	switch user.Role {
	case types.RoleAdmin, types.RoleEditor:
		return nil
	case types.RoleAuthor:
		if article.AuthorID == user.ID {
			return nil
		}
	}
	return ErrForbidden
}

// CanUpdateArticle decides update access. Admins and editors may update
// any article. Authors may update only their own, and even then may not
// change its status; statusChanging must be true when the request
// carries a status different from the article's current one.
func CanUpdateArticle(user types.User, article types.Article, statusChanging bool) error {
	switch user.Role {
	case types.RoleAdmin, types.RoleEditor:
		return nil
	case types.RoleAuthor:
		if article.AuthorID != user.ID {
			return ErrForbidden
		}
		if statusChanging {
			return ErrAuthorStatusChange
		}
		return nil
	}
	return ErrForbidden
}

// CanDeleteArticle decides delete access. Role-only: admins may delete
// any article. No ownership check is consulted; a per-article ownership
// branch on this path would be unreachable behind the role gate.
func CanDeleteArticle(user types.User) error {
	return Allow(user.Role, ActionDeleteArticle)
}

// Visibility bounds a listing request before caller-supplied filters
// are applied.
type Visibility struct {
	// ForcePublished restricts results to published articles and
	// overrides any caller-supplied status filter.
	ForcePublished bool

	// OwnOnly restricts results to articles owned by the requester.
	OwnOnly bool
}

// ListingVisibility computes the visibility boundary for a requester.
// Pass nil for anonymous requests.
func ListingVisibility(user *types.User) Visibility {
	if user == nil {
		return Visibility{ForcePublished: true}
	}
	switch user.Role {
	case types.RoleAdmin, types.RoleEditor:
		return Visibility{}
	case types.RoleAuthor:
		return Visibility{OwnOnly: true}
	default:
		return Visibility{ForcePublished: true}
	}
}

// CanManageUser decides access to a user record: the user themself or
// an admin.
func CanManageUser(actor types.User, targetID int) error {
	if actor.ID == targetID || actor.Role == types.RoleAdmin {
		return nil
	}
	return ErrForbidden
}
