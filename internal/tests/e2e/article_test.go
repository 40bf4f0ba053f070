//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/newsdesk/apiserver/config"
	"github.com/newsdesk/apiserver/internal/server"
	"github.com/newsdesk/apiserver/pkg/logger"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestArticleLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("editor_%d", time.Now().UnixNano())
	password := "testpass123!"

	token, err := registerUser(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	if err := setUserRole(username, "editor"); err != nil {
		t.Fatalf("promote user: %v", err)
	}

	created, err := createDraft(t, baseURL, token)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected article ID to be set")
	}
	if created.Status != "draft" {
		t.Fatalf("unexpected status after create: %q", created.Status)
	}

	published, err := changeStatus(t, baseURL, token, created.ID, "published")
	if err != nil {
		t.Fatalf("publish article: %v", err)
	}
	if published.Status != "published" {
		t.Fatalf("unexpected status after publish: %q", published.Status)
	}
	if published.PublishTime == nil {
		t.Fatalf("expected publish time to be set")
	}

	// The published article is visible anonymously, and the fetch counts
	// a view.
	fetched, err := getPublicArticle(t, baseURL, created.ID)
	if err != nil {
		t.Fatalf("get public article: %v", err)
	}
	if fetched.Views != 1 {
		t.Fatalf("expected one view, got %d", fetched.Views)
	}

	// Deleting requires admin; the editor gets a clean 403 first.
	if err := deleteArticle(t, baseURL, token, created.ID); err == nil {
		t.Fatalf("expected editor delete to fail")
	}
	if err := setUserRole(username, "admin"); err != nil {
		t.Fatalf("promote to admin: %v", err)
	}
	if err := deleteArticle(t, baseURL, token, created.ID); err != nil {
		t.Fatalf("delete article: %v", err)
	}

	if err := expectArticleNotFound(t, baseURL, created.ID); err != nil {
		t.Fatalf("expected deleted article to be missing: %v", err)
	}
}

type articleResponse struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Views       int64      `json:"views"`
	PublishTime *time.Time `json:"publish_time"`
}

type articleEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Article articleResponse `json:"article"`
}

func registerUser(t *testing.T, baseURL, username, password string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"name":     "Test Editor",
		"password": password,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/signup", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("signup status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "token" && cookie.Value != "" {
			return cookie.Value, nil
		}
	}
	return "", fmt.Errorf("missing session cookie in signup response")
}

func setUserRole(username, role string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx, "UPDATE users SET role = $1, updated_at = NOW() WHERE username = $2", role, username)
	return err
}

func createDraft(t *testing.T, baseURL, token string) (articleResponse, error) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	_ = writer.WriteField("title", "City council approves new transit plan")
	_ = writer.WriteField("excerpt", "The council voted 7-2 in favor of the plan.")
	_ = writer.WriteField("content", strings.Repeat("Details of the plan and reactions from residents. ", 3))
	_ = writer.WriteField("category", "Local")
	_ = writer.WriteField("tags", "transit,council")
	_ = writer.WriteField("status", "draft")

	part, err := writer.CreateFormFile("image", "cover.png")
	if err != nil {
		return articleResponse{}, err
	}
	if _, err := part.Write([]byte("fake-png-bytes")); err != nil {
		return articleResponse{}, err
	}
	if err := writer.Close(); err != nil {
		return articleResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/news", &body)
	if err != nil {
		return articleResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return articleResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return articleResponse{}, fmt.Errorf("create article status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed articleEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return articleResponse{}, err
	}
	return parsed.Article, nil
}

func changeStatus(t *testing.T, baseURL, token string, id int, status string) (articleResponse, error) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return articleResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/news/%d/status", baseURL, id), bytes.NewReader(body))
	if err != nil {
		return articleResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return articleResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return articleResponse{}, fmt.Errorf("change status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed articleEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return articleResponse{}, err
	}
	return parsed.Article, nil
}

func getPublicArticle(t *testing.T, baseURL string, id int) (articleResponse, error) {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/news/public/%d", baseURL, id))
	if err != nil {
		return articleResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return articleResponse{}, fmt.Errorf("get article status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed articleEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return articleResponse{}, err
	}
	return parsed.Article, nil
}

func deleteArticle(t *testing.T, baseURL, token string, id int) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/news/%d", baseURL, id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete article status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func expectArticleNotFound(t *testing.T, baseURL string, id int) error {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/news/public/%d", baseURL, id))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected 404 after delete, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer() (*server.Server, error) {
	uploadsDir, err := os.MkdirTemp("", "newsdesk-uploads-")
	if err != nil {
		return nil, err
	}

	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "newsdesk")
	_ = os.Setenv("DB_PASSWORD", "newsdesk")
	_ = os.Setenv("DB_NAME", "newsdesk")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "local")
	_ = os.Setenv("STORAGE_LOCAL_DIR", uploadsDir)
	_ = os.Setenv("BROKER_BACKEND", "none")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg, logger.New())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}
