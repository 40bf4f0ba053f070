package types

import "time"

// Article statuses. An article is created in draft and moves to
// published exactly once; the transition latches PublishTime.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// ValidStatus reports whether status is a recognized article status.
func ValidStatus(status string) bool {
	return status == StatusDraft || status == StatusPublished
}

// Minimum field lengths that must hold whenever an article is saved
// with status published.
const (
	MinPublishedTitleLen   = 5
	MinPublishedExcerptLen = 10
	MinPublishedContentLen = 50
)

// Article represents a news item with a draft/published lifecycle.
type Article struct {
	// ID is the unique identifier of the article.
	ID int `json:"id" db:"id"`

	// Title is the article headline.
	Title string `json:"title" db:"title"`

	// Category is the free-text category name. It is not a foreign key
	// into the categories table; see CategoryService for the soft
	// validation applied at creation time.
	Category string `json:"category" db:"category"`

	// Excerpt is the short teaser shown in listings.
	Excerpt string `json:"excerpt" db:"excerpt"`

	// Content is the full article body.
	Content string `json:"content" db:"content"`

	// Description is additional summary text used for search and
	// social previews.
	Description string `json:"description" db:"description"`

	// Tags are free-form labels used for filtering and search.
	Tags []string `json:"tags" db:"tags"`

	// Status is the lifecycle state, draft or published.
	Status string `json:"status" db:"status"`

	// Image is the object key of the uploaded cover image, if any.
	Image string `json:"image,omitempty" db:"image"`

	// AuthorID references the user who created the article. Ownership
	// never transfers.
	AuthorID int `json:"author_id" db:"author_id"`

	// AuthorName is a denormalized snapshot of the creator's display
	// name, taken at creation time.
	AuthorName string `json:"author_name" db:"author_name"`

	// Views counts successful fetches of the published article.
	Views int64 `json:"views" db:"views"`

	// Downloads counts successful download requests.
	Downloads int64 `json:"downloads" db:"downloads"`

	// PublishTime is set the first time the article becomes published
	// and never changes afterwards. Nil while it has never been
	// published.
	PublishTime *time.Time `json:"publish_time,omitempty" db:"publish_time"`

	// CreatedAt is the timestamp at which the article was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ArticleFilter describes a filtered, paginated listing request.
// Visibility restrictions derived from the requester's role are applied
// by the service before the caller-supplied filters.
type ArticleFilter struct {
	// Status restricts results to a lifecycle state. Ignored (forced to
	// published) for anonymous and reader-role requests.
	Status string

	// Category restricts results to an exact category name.
	Category string

	// AuthorID restricts results to one author's articles.
	AuthorID int

	// Search matches case-insensitively as a substring across title,
	// content, description, and tag membership.
	Search string

	// SortBy is the sort column; one of created_at, publish_time,
	// title, views, downloads. Defaults to created_at.
	SortBy string

	// SortDesc sorts newest/largest first when true. Default true.
	SortDesc bool

	// Offset and Limit implement page-based pagination.
	Offset int
	Limit  int
}

// ArticleStats aggregates counters across the article collection.
type ArticleStats struct {
	Total          int            `json:"total"`
	Published      int            `json:"published"`
	Drafts         int            `json:"drafts"`
	TotalViews     int64          `json:"total_views"`
	TotalDownloads int64          `json:"total_downloads"`
	ByCategory     map[string]int `json:"by_category"`
}
