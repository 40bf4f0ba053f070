package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/newsdesk/apiserver/internal/services"
	"github.com/newsdesk/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	formFieldImage     = "image"
)

// ArticleHandler provides HTTP handlers for articles.
type ArticleHandler struct {
	articles      *services.ArticleService
	maxImageBytes int64
}

// NewArticleHandler constructs a handler with the provided service.
func NewArticleHandler(articles *services.ArticleService, maxImageBytes int64) *ArticleHandler {
	return &ArticleHandler{
		articles:      articles,
		maxImageBytes: maxImageBytes,
	}
}

// NewsRouter registers article routes on the given router. The /public
// subtree serves anonymous readers; everything else sits behind the
// auth gate.
func NewsRouter(r chi.Router, articles *services.ArticleService, maxImageBytes int64, auth *AuthHandler) {
	handler := NewArticleHandler(articles, maxImageBytes)

	r.Get("/public", handler.ListPublic)
	r.Get("/public/{articleID}", handler.GetPublic)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/admin/stats", handler.Stats)
		r.Route("/{articleID}", func(r chi.Router) {
			r.Get("/", handler.Get)
			r.Put("/", handler.Update)
			r.Delete("/", handler.Delete)
			r.Patch("/status", handler.ChangeStatus)
			r.Patch("/download", handler.Download)
		})
	})
}

func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.list(w, r, &user)
}

// ListPublic lists published articles for anonymous readers. Any
// caller-supplied status filter is overridden by the service.
func (h *ArticleHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, nil)
}

func (h *ArticleHandler) list(w http.ResponseWriter, r *http.Request, actor *types.User) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parseArticleFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Offset = offset
	filter.Limit = limit

	articles, total, err := h.articles.List(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"articles":    articles,
		"page":        page,
		"limit":       limit,
		"total":       total,
		"total_pages": totalPages(total, limit),
	})
}

func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "articleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	article, err := h.articles.Get(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"article": article})
}

func (h *ArticleHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "articleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	article, err := h.articles.GetPublic(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"article": article})
}

func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	input, image, err := h.parseArticlePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.articles.Create(r.Context(), user, input, image)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, envelope{"article": created})
}

func (h *ArticleHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "articleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input, image, err := h.parseArticlePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.articles.Update(r.Context(), user, id, input, image)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"article": updated})
}

func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "articleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.articles.Delete(r.Context(), user, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"message": "article deleted"})
}

type statusChangeRequest struct {
	Status string `json:"status"`
}

func (h *ArticleHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "articleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.articles.ChangeStatus(r.Context(), user, id, strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"article": updated})
}

func (h *ArticleHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "articleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	article, err := h.articles.Download(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"article": article})
}

func (h *ArticleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.articles.Stats(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"stats": stats})
}

func parseArticleFilter(r *http.Request) (types.ArticleFilter, error) {
	query := r.URL.Query()

	filter := types.ArticleFilter{
		Status:   strings.ToLower(strings.TrimSpace(query.Get("status"))),
		Category: strings.TrimSpace(query.Get("category")),
		Search:   strings.TrimSpace(query.Get("search")),
		SortBy:   strings.TrimSpace(query.Get("sort_by")),
		SortDesc: true,
	}

	if raw := strings.TrimSpace(query.Get("author")); raw != "" {
		authorID, err := strconv.Atoi(raw)
		if err != nil || authorID < 1 {
			return types.ArticleFilter{}, errors.New("invalid author filter")
		}
		filter.AuthorID = authorID
	}

	switch strings.ToLower(strings.TrimSpace(query.Get("order"))) {
	case "", "desc":
		filter.SortDesc = true
	case "asc":
		filter.SortDesc = false
	default:
		return types.ArticleFilter{}, errors.New("invalid sort order")
	}

	return filter, nil
}

type articleJSONPayload struct {
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Excerpt     string   `json:"excerpt"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
}

// parseArticlePayload accepts either a JSON body or a multipart form;
// an image file can only arrive via multipart.
func (h *ArticleHandler) parseArticlePayload(r *http.Request) (services.ArticleInput, *services.ImageUpload, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var payload articleJSONPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return services.ArticleInput{}, nil, errors.New("invalid request body")
		}
		return services.ArticleInput{
			Title:       payload.Title,
			Category:    payload.Category,
			Excerpt:     payload.Excerpt,
			Content:     payload.Content,
			Description: payload.Description,
			Tags:        payload.Tags,
			Status:      payload.Status,
		}, nil, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.ArticleInput{}, nil, errors.New("invalid multipart form")
	}

	input := services.ArticleInput{
		Title:       r.FormValue("title"),
		Category:    r.FormValue("category"),
		Excerpt:     r.FormValue("excerpt"),
		Content:     r.FormValue("content"),
		Description: r.FormValue("description"),
		Tags:        parseTags(r.FormValue("tags")),
		Status:      r.FormValue("status"),
	}

	image, err := h.parseImageFile(r)
	if err != nil {
		return services.ArticleInput{}, nil, err
	}
	return input, image, nil
}

func (h *ArticleHandler) parseImageFile(r *http.Request) (*services.ImageUpload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File[formFieldImage]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one image file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, errors.New("failed to read image file")
	}

	data, err := readFileLimited(file, h.maxImageBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	return &services.ImageUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
