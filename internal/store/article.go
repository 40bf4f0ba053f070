package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/newsdesk/apiserver/types"
)

// ArticleRepository handles persistence for articles.
type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

const articleColumns = `id, title, category, excerpt, content, description, tags, status, image,
		author_id, author_name, views, downloads, publish_time, created_at, updated_at`

// sortColumns whitelists the sortable columns exposed through the API.
var sortColumns = map[string]string{
	"created_at":   "created_at",
	"publish_time": "publish_time",
	"title":        "title",
	"views":        "views",
	"downloads":    "downloads",
}

func scanArticle(row interface{ Scan(...any) error }) (types.Article, error) {
	var article types.Article
	var tagsJSON []byte
	var publishTime sql.NullTime
	err := row.Scan(
		&article.ID,
		&article.Title,
		&article.Category,
		&article.Excerpt,
		&article.Content,
		&article.Description,
		&tagsJSON,
		&article.Status,
		&article.Image,
		&article.AuthorID,
		&article.AuthorName,
		&article.Views,
		&article.Downloads,
		&publishTime,
		&article.CreatedAt,
		&article.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Article{}, ErrNotFound
		}
		return types.Article{}, err
	}
	_ = json.Unmarshal(tagsJSON, &article.Tags)
	if publishTime.Valid {
		t := publishTime.Time
		article.PublishTime = &t
	}
	return article, nil
}

// List returns articles matching the filter plus the total match count.
// The filter is assumed to already carry the requester's visibility
// restrictions; no role logic lives here.
func (r *ArticleRepository) List(ctx context.Context, filter types.ArticleFilter) ([]types.Article, int, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	where, args := buildArticleWhere(filter)

	countQuery := `SELECT COUNT(1) FROM articles` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortBy, ok := sortColumns[filter.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	order := "ASC"
	if filter.SortDesc {
		order = "DESC"
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM articles%s
		ORDER BY %s %s, id %s
		OFFSET $%d LIMIT $%d`,
		articleColumns, where, sortBy, order, order, len(args)+1, len(args)+2)
	args = append(args, filter.Offset, filter.Limit)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	articles := make([]types.Article, 0, filter.Limit)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return articles, total, nil
}

func buildArticleWhere(filter types.ArticleFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Category != "" {
		add("LOWER(category) = LOWER($%d)", filter.Category)
	}
	if filter.AuthorID != 0 {
		add("author_id = $%d", filter.AuthorID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			`(title ILIKE $%d OR content ILIKE $%d OR description ILIKE $%d
				OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) AS tag WHERE tag ILIKE $%d))`,
			n, n, n, n))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *ArticleRepository) Get(ctx context.Context, id int) (types.Article, error) {
	const query = `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE id = $1`
	return scanArticle(r.db.QueryRowContext(ctx, query, id))
}

func (r *ArticleRepository) Create(ctx context.Context, article types.Article) (types.Article, error) {
	now := time.Now()
	article.CreatedAt = now
	article.UpdatedAt = now

	tagsJSON, err := json.Marshal(tagsOrEmpty(article.Tags))
	if err != nil {
		return types.Article{}, err
	}

	const query = `
		INSERT INTO articles (title, category, excerpt, content, description, tags, status, image,
			author_id, author_name, views, downloads, publish_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		article.Title,
		article.Category,
		article.Excerpt,
		article.Content,
		article.Description,
		tagsJSON,
		article.Status,
		article.Image,
		article.AuthorID,
		article.AuthorName,
		article.Views,
		article.Downloads,
		nullableTime(article.PublishTime),
		article.CreatedAt,
		article.UpdatedAt,
	).Scan(&article.ID); err != nil {
		return types.Article{}, translateError(err)
	}

	return article, nil
}

// Update persists every mutable field of the article. Counter columns
// are deliberately excluded; they only move through the Increment
// methods so concurrent bumps are never overwritten by an edit.
func (r *ArticleRepository) Update(ctx context.Context, article types.Article) (types.Article, error) {
	article.UpdatedAt = time.Now()

	tagsJSON, err := json.Marshal(tagsOrEmpty(article.Tags))
	if err != nil {
		return types.Article{}, err
	}

	const query = `
		UPDATE articles
		SET title = $1,
			category = $2,
			excerpt = $3,
			content = $4,
			description = $5,
			tags = $6,
			status = $7,
			image = $8,
			publish_time = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		article.Title,
		article.Category,
		article.Excerpt,
		article.Content,
		article.Description,
		tagsJSON,
		article.Status,
		article.Image,
		nullableTime(article.PublishTime),
		article.UpdatedAt,
		article.ID,
	)
	if err != nil {
		return types.Article{}, translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Article{}, err
	}
	if affected == 0 {
		return types.Article{}, ErrNotFound
	}

	return article, nil
}

func (r *ArticleRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM articles WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps the view counter in a single statement so
// concurrent fetches never under-count. Only published articles count
// views; a draft id is reported as ErrNotFound.
func (r *ArticleRepository) IncrementViews(ctx context.Context, id int) error {
	return r.increment(ctx, "views", id)
}

// IncrementDownloads bumps the download counter. Same single-statement
// discipline as IncrementViews.
func (r *ArticleRepository) IncrementDownloads(ctx context.Context, id int) error {
	return r.increment(ctx, "downloads", id)
}

func (r *ArticleRepository) increment(ctx context.Context, column string, id int) error {
	query := fmt.Sprintf(
		`UPDATE articles SET %s = %s + 1 WHERE id = $1 AND status = $2`, column, column)
	result, err := r.db.ExecContext(ctx, query, id, types.StatusPublished)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates counters across the whole collection.
func (r *ArticleRepository) Stats(ctx context.Context) (types.ArticleStats, error) {
	const totalsQuery = `
		SELECT COUNT(1),
			COUNT(1) FILTER (WHERE status = 'published'),
			COUNT(1) FILTER (WHERE status = 'draft'),
			COALESCE(SUM(views), 0),
			COALESCE(SUM(downloads), 0)
		FROM articles`
	var stats types.ArticleStats
	if err := r.db.QueryRowContext(ctx, totalsQuery).Scan(
		&stats.Total,
		&stats.Published,
		&stats.Drafts,
		&stats.TotalViews,
		&stats.TotalDownloads,
	); err != nil {
		return types.ArticleStats{}, err
	}

	const byCategoryQuery = `
		SELECT category, COUNT(1)
		FROM articles
		WHERE category <> ''
		GROUP BY category`
	rows, err := r.db.QueryContext(ctx, byCategoryQuery)
	if err != nil {
		return types.ArticleStats{}, err
	}
	defer rows.Close()

	stats.ByCategory = make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return types.ArticleStats{}, err
		}
		stats.ByCategory[category] = count
	}
	return stats, rows.Err()
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
