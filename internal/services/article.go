package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/newsdesk/apiserver/config"
	"github.com/newsdesk/apiserver/internal/policy"
	"github.com/newsdesk/apiserver/internal/storage"
	"github.com/newsdesk/apiserver/internal/store"
	"github.com/newsdesk/apiserver/types"
	"github.com/rs/zerolog"
)

// ArticleRepository defines persistence operations for articles.
type ArticleRepository interface {
	List(ctx context.Context, filter types.ArticleFilter) ([]types.Article, int, error)
	Get(ctx context.Context, id int) (types.Article, error)
	Create(ctx context.Context, article types.Article) (types.Article, error)
	Update(ctx context.Context, article types.Article) (types.Article, error)
	Delete(ctx context.Context, id int) error
	IncrementViews(ctx context.Context, id int) error
	IncrementDownloads(ctx context.Context, id int) error
	Stats(ctx context.Context) (types.ArticleStats, error)
}

// EventPublisher publishes article lifecycle events to a broker.
// *mq.MQ satisfies it; it stays nil when no broker is configured.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Article lifecycle event types.
const (
	EventArticlePublished = "article.published"
	EventArticleDeleted   = "article.deleted"
)

// ArticleEvent is the JSON payload published on lifecycle transitions.
type ArticleEvent struct {
	Type       string    `json:"type"`
	ArticleID  int       `json:"article_id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	AuthorID   int       `json:"author_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ArticleInput is the caller-supplied portion of an article save.
// An empty Status means "default" on create (draft) and "unchanged" on
// update.
type ArticleInput struct {
	Title       string
	Category    string
	Excerpt     string
	Content     string
	Description string
	Tags        []string
	Status      string
}

// ArticleService encapsulates the article lifecycle: the save-time
// validation gate, the publish-time latch, ownership-aware access, view
// and download counting, and image storage cleanup.
type ArticleService struct {
	repo         ArticleRepository
	categories   *CategoryService
	images       *storage.Storage
	uploads      config.UploadConfig
	events       EventPublisher
	eventChannel string
	log          zerolog.Logger
}

func NewArticleService(
	repo ArticleRepository,
	categories *CategoryService,
	images *storage.Storage,
	uploads config.UploadConfig,
	log zerolog.Logger,
) *ArticleService {
	return &ArticleService{
		repo:       repo,
		categories: categories,
		images:     images,
		uploads:    uploads,
		log:        log,
	}
}

// SetEventPublisher enables best-effort lifecycle event publishing.
func (s *ArticleService) SetEventPublisher(publisher EventPublisher, channel string) {
	s.events = publisher
	s.eventChannel = channel
}

// List returns articles visible to the requester, narrowed by the
// caller-supplied filter. actor is nil for anonymous requests. The
// visibility boundary always wins over the caller's filters: an
// anonymous status=draft filter is overridden, not rejected.
func (s *ArticleService) List(ctx context.Context, actor *types.User, filter types.ArticleFilter) ([]types.Article, int, error) {
	visibility := policy.ListingVisibility(actor)
	if visibility.ForcePublished {
		filter.Status = types.StatusPublished
	} else if filter.Status != "" && !types.ValidStatus(filter.Status) {
		return nil, 0, &ValidationError{Errors: []string{"invalid status filter"}}
	}
	if visibility.OwnOnly {
		filter.AuthorID = actor.ID
	}
	return s.repo.List(ctx, filter)
}

// Get loads one article for an authenticated requester, enforcing the
// read-access rules, and counts the view when the article is published.
func (s *ArticleService) Get(ctx context.Context, actor types.User, id int) (types.Article, error) {
	article, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Article{}, err
	}
	if err := policy.CanReadArticle(actor, article); err != nil {
		return types.Article{}, err
	}
	s.countView(ctx, &article)
	return article, nil
}

// GetPublic loads one published article for an anonymous requester.
// Drafts are reported as not found so their existence does not leak.
func (s *ArticleService) GetPublic(ctx context.Context, id int) (types.Article, error) {
	article, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Article{}, err
	}
	if article.Status != types.StatusPublished {
		return types.Article{}, store.ErrNotFound
	}
	s.countView(ctx, &article)
	return article, nil
}

// Create stores a new article owned by the actor. The requested status
// is validated through the publish gate before any role downgrade, so
// an author asking for "published" with a two-character title gets the
// validation errors rather than a silently saved draft.
func (s *ArticleService) Create(ctx context.Context, actor types.User, input ArticleInput, image *ImageUpload) (types.Article, error) {
	if err := policy.Allow(actor.Role, policy.ActionCreateArticle); err != nil {
		return types.Article{}, err
	}

	input = normalizeInput(input)
	requestedStatus := input.Status
	if requestedStatus == "" {
		requestedStatus = types.StatusDraft
	}

	problems := validateStatus(requestedStatus)
	problems = append(problems, validateRequired(input)...)
	if requestedStatus == types.StatusPublished {
		problems = append(problems, validatePublishable(input.Title, input.Excerpt, input.Content)...)
	}
	if image != nil {
		problems = append(problems, validateImage(image, s.uploads.MaxBytes)...)
	}
	if len(problems) == 0 && actor.Role == types.RoleAuthor && input.Category != "" {
		if err := s.validateCategory(ctx, input.Category); err != nil {
			if verr, ok := AsValidationError(err); ok {
				problems = append(problems, verr.Errors...)
			} else {
				return types.Article{}, err
			}
		}
	}
	if len(problems) > 0 {
		return types.Article{}, &ValidationError{Errors: problems}
	}

	status := requestedStatus
	if status == types.StatusPublished && !policy.CanCreatePublished(actor.Role) {
		status = types.StatusDraft
	}

	article := types.Article{
		Title:       input.Title,
		Category:    input.Category,
		Excerpt:     input.Excerpt,
		Content:     input.Content,
		Description: input.Description,
		Tags:        input.Tags,
		Status:      status,
		AuthorID:    actor.ID,
		AuthorName:  actor.Name,
	}
	if status == types.StatusPublished {
		now := time.Now()
		article.PublishTime = &now
	}

	var imageKey string
	if image != nil {
		key, err := s.storeImage(ctx, image)
		if err != nil {
			return types.Article{}, err
		}
		imageKey = key
		article.Image = key
	}

	created, err := s.repo.Create(ctx, article)
	if err != nil {
		s.removeImage(ctx, imageKey)
		return types.Article{}, err
	}

	if created.Status == types.StatusPublished {
		s.publishEvent(ctx, EventArticlePublished, created)
	}
	return created, nil
}

// Update saves changes to an existing article under the update
// permission rules. A replacement image is stored before the database
// write; the new object is removed if anything later fails, and the old
// object is removed only after the update commits.
func (s *ArticleService) Update(ctx context.Context, actor types.User, id int, input ArticleInput, image *ImageUpload) (types.Article, error) {
	article, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Article{}, err
	}

	input = normalizeInput(input)
	statusChanging := input.Status != "" && input.Status != article.Status
	if err := policy.CanUpdateArticle(actor, article, statusChanging); err != nil {
		return types.Article{}, err
	}

	resultingStatus := article.Status
	if input.Status != "" {
		resultingStatus = input.Status
	}

	problems := validateStatus(resultingStatus)
	problems = append(problems, validateRequired(input)...)
	if resultingStatus == types.StatusPublished {
		problems = append(problems, validatePublishable(input.Title, input.Excerpt, input.Content)...)
	}
	if image != nil {
		problems = append(problems, validateImage(image, s.uploads.MaxBytes)...)
	}
	if len(problems) > 0 {
		return types.Article{}, &ValidationError{Errors: problems}
	}

	wasPublished := article.Status == types.StatusPublished
	previousImage := article.Image

	article.Title = input.Title
	article.Category = input.Category
	article.Excerpt = input.Excerpt
	article.Content = input.Content
	article.Description = input.Description
	article.Tags = input.Tags
	article.Status = resultingStatus
	latchPublishTime(&article)

	var newImage string
	if image != nil {
		key, err := s.storeImage(ctx, image)
		if err != nil {
			return types.Article{}, err
		}
		newImage = key
		article.Image = key
	}

	updated, err := s.repo.Update(ctx, article)
	if err != nil {
		s.removeImage(ctx, newImage)
		return types.Article{}, err
	}

	if newImage != "" && previousImage != newImage {
		s.removeImage(ctx, previousImage)
	}
	if !wasPublished && updated.Status == types.StatusPublished {
		s.publishEvent(ctx, EventArticlePublished, updated)
	}
	return updated, nil
}

// ChangeStatus moves an article between draft and published. The
// publish gate runs against the article's current fields, so an
// incomplete draft cannot be published until its fields are fixed.
func (s *ArticleService) ChangeStatus(ctx context.Context, actor types.User, id int, status string) (types.Article, error) {
	if err := policy.Allow(actor.Role, policy.ActionChangeStatus); err != nil {
		return types.Article{}, err
	}

	article, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Article{}, err
	}

	problems := validateStatus(status)
	if status == types.StatusPublished {
		problems = append(problems, validatePublishable(article.Title, article.Excerpt, article.Content)...)
	}
	if len(problems) > 0 {
		return types.Article{}, &ValidationError{Errors: problems}
	}

	wasPublished := article.Status == types.StatusPublished
	article.Status = status
	latchPublishTime(&article)

	updated, err := s.repo.Update(ctx, article)
	if err != nil {
		return types.Article{}, err
	}

	if !wasPublished && updated.Status == types.StatusPublished {
		s.publishEvent(ctx, EventArticlePublished, updated)
	}
	return updated, nil
}

// Delete removes an article and its stored image together. Admin only;
// the role gate runs before the article is even loaded.
func (s *ArticleService) Delete(ctx context.Context, actor types.User, id int) error {
	if err := policy.CanDeleteArticle(actor); err != nil {
		return err
	}

	article, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.removeImage(ctx, article.Image)
	s.publishEvent(ctx, EventArticleDeleted, article)
	return nil
}

// Download records a download of a published article. The role gate
// runs first, so a standard user is refused regardless of the
// article's status or existence; a draft then yields a business-rule
// error, not a permission error.
func (s *ArticleService) Download(ctx context.Context, actor types.User, id int) (types.Article, error) {
	if err := policy.Allow(actor.Role, policy.ActionDownloadArticle); err != nil {
		return types.Article{}, err
	}

	article, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Article{}, err
	}
	if article.Status != types.StatusPublished {
		return types.Article{}, ErrDraftDownload
	}

	if err := s.repo.IncrementDownloads(ctx, id); err != nil {
		return types.Article{}, err
	}
	article.Downloads++
	return article, nil
}

// Stats aggregates collection-wide counters for the admin dashboard.
func (s *ArticleService) Stats(ctx context.Context, actor types.User) (types.ArticleStats, error) {
	if err := policy.Allow(actor.Role, policy.ActionViewStats); err != nil {
		return types.ArticleStats{}, err
	}
	return s.repo.Stats(ctx)
}

// latchPublishTime sets PublishTime the first time the article becomes
// published. Once set it is never overwritten, including on later saves
// or on unpublish/republish cycles.
func latchPublishTime(article *types.Article) {
	if article.Status == types.StatusPublished && article.PublishTime == nil {
		now := time.Now()
		article.PublishTime = &now
	}
}

// validatePublishable is the lifecycle gate: the field-completeness
// rules that must hold whenever a save results in a published article.
func validatePublishable(title, excerpt, content string) []string {
	var problems []string
	if len(title) < types.MinPublishedTitleLen {
		problems = append(problems, fmt.Sprintf("title must be at least %d characters to publish", types.MinPublishedTitleLen))
	}
	if len(excerpt) < types.MinPublishedExcerptLen {
		problems = append(problems, fmt.Sprintf("excerpt must be at least %d characters to publish", types.MinPublishedExcerptLen))
	}
	if len(content) < types.MinPublishedContentLen {
		problems = append(problems, fmt.Sprintf("content must be at least %d characters to publish", types.MinPublishedContentLen))
	}
	return problems
}

func validateRequired(input ArticleInput) []string {
	var problems []string
	if input.Title == "" {
		problems = append(problems, "title is required")
	}
	return problems
}

func validateStatus(status string) []string {
	if !types.ValidStatus(status) {
		return []string{fmt.Sprintf("invalid status %q", status)}
	}
	return nil
}

func normalizeInput(input ArticleInput) ArticleInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Category = strings.TrimSpace(input.Category)
	input.Excerpt = strings.TrimSpace(input.Excerpt)
	input.Description = strings.TrimSpace(input.Description)
	input.Status = strings.ToLower(strings.TrimSpace(input.Status))
	return input
}

// validateCategory checks an author-supplied category name against a
// one-shot snapshot of the existing categories. A failure to load the
// snapshot fails the save (closed), it does not wave the category
// through.
func (s *ArticleService) validateCategory(ctx context.Context, name string) error {
	names, err := s.categories.Names(ctx)
	if err != nil {
		return fmt.Errorf("resolve categories: %w", err)
	}
	if !names[strings.ToLower(name)] {
		return &ValidationError{Errors: []string{fmt.Sprintf("unknown category %q", name)}}
	}
	return nil
}

func (s *ArticleService) storeImage(ctx context.Context, image *ImageUpload) (string, error) {
	key := storage.NewObjectKey(image.Filename)
	reader := bytes.NewReader(image.Data)
	if err := s.images.Put(ctx, key, reader, int64(len(image.Data)), image.ContentType); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}

// removeImage deletes a stored image, best effort. The configured
// default image is protected and never deleted.
func (s *ArticleService) removeImage(ctx context.Context, key string) {
	if key == "" || key == s.uploads.DefaultImage {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("image", key).Msg("failed to remove stored image")
	}
}

func (s *ArticleService) countView(ctx context.Context, article *types.Article) {
	if article.Status != types.StatusPublished {
		return
	}
	if err := s.repo.IncrementViews(ctx, article.ID); err != nil {
		s.log.Warn().Err(err).Int("article_id", article.ID).Msg("failed to count view")
		return
	}
	article.Views++
}

func (s *ArticleService) publishEvent(ctx context.Context, eventType string, article types.Article) {
	if s.events == nil {
		return
	}
	event := ArticleEvent{
		Type:       eventType,
		ArticleID:  article.ID,
		Title:      article.Title,
		Category:   article.Category,
		AuthorID:   article.AuthorID,
		OccurredAt: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if _, err := s.events.Publish(ctx, s.eventChannel, data, map[string]string{"type": eventType}); err != nil {
		s.log.Warn().Err(err).Str("type", eventType).Int("article_id", article.ID).Msg("failed to publish article event")
	}
}
