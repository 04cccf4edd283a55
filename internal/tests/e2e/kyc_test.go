//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/dekyc/apiserver/config"
	"github.com/dekyc/apiserver/internal/db"
	"github.com/dekyc/apiserver/internal/logger"
	"github.com/dekyc/apiserver/internal/server"
)

const (
	serverPort    = 18080
	adminEmail    = "admin@example.com"
	adminPassword = "Adm1n!secret"
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestKYCLifecycle(t *testing.T) {
	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())
	password := "Str0ng!pass"

	var reg struct {
		Token string `json:"token"`
		User  struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"user"`
		Strength struct {
			Score int `json:"score"`
		} `json:"strength"`
	}
	status := doJSON(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name":             "E2E User",
		"email":            email,
		"phone":            "+91 90000 00000",
		"password":         password,
		"confirm_password": password,
		"agree_to_terms":   true,
	}, &reg)
	if status != http.StatusCreated {
		t.Fatalf("register: unexpected status %d", status)
	}
	if reg.User.Status != "pending" || reg.Strength.Score != 5 {
		t.Fatalf("unexpected registration: %+v", reg)
	}

	docID := uploadDocument(t, reg.Token)

	var docs struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Stats struct {
			Total   int `json:"total"`
			Pending int `json:"pending"`
		} `json:"stats"`
	}
	if status := doJSON(t, http.MethodGet, "/documents", reg.Token, nil, &docs); status != http.StatusOK {
		t.Fatalf("list documents: unexpected status %d", status)
	}
	if docs.Stats.Total != 1 || docs.Stats.Pending != 1 || docs.Items[0].ID != docID {
		t.Fatalf("unexpected documents: %+v", docs)
	}

	var login struct {
		Token string `json:"token"`
	}
	if status := doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": adminEmail, "password": adminPassword,
	}, &login); status != http.StatusOK {
		t.Fatalf("admin login: unexpected status %d", status)
	}

	var roster struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Tally struct {
			Total   int `json:"total"`
			Pending int `json:"pending"`
		} `json:"tally"`
	}
	if status := doJSON(t, http.MethodGet, "/admin/users?q="+url.QueryEscape(email), login.Token, nil, &roster); status != http.StatusOK {
		t.Fatalf("list roster: unexpected status %d", status)
	}
	if len(roster.Items) != 1 || roster.Items[0].ID != reg.User.ID {
		t.Fatalf("registered user not found in roster: %+v", roster)
	}
	pendingBefore := roster.Tally.Pending

	var updated struct {
		Status string `json:"status"`
	}
	if status := doJSON(t, http.MethodPut, "/admin/users/"+reg.User.ID+"/status", login.Token,
		map[string]string{"status": "approved"}, &updated); status != http.StatusOK {
		t.Fatalf("approve: unexpected status %d", status)
	}
	if updated.Status != "approved" {
		t.Fatalf("expected approved, got %q", updated.Status)
	}

	if status := doJSON(t, http.MethodGet, "/admin/users", login.Token, nil, &roster); status != http.StatusOK {
		t.Fatalf("list roster: unexpected status %d", status)
	}
	if roster.Tally.Pending != pendingBefore-1 {
		t.Fatalf("expected pending to drop to %d, got %d", pendingBefore-1, roster.Tally.Pending)
	}

	var details struct {
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
		Checklist []struct {
			Title string `json:"title"`
		} `json:"checklist"`
	}
	if status := doJSON(t, http.MethodGet, "/admin/users/"+reg.User.ID, login.Token, nil, &details); status != http.StatusOK {
		t.Fatalf("details: unexpected status %d", status)
	}
	if len(details.Documents) != 1 || len(details.Checklist) != 4 {
		t.Fatalf("unexpected details: %+v", details)
	}
	if details.Checklist[0].Title != "E2E User - Citizenship Certificate" {
		t.Fatalf("unexpected checklist title %q", details.Checklist[0].Title)
	}

	if status := doJSON(t, http.MethodPut, "/admin/users/"+reg.User.ID+"/documents/"+docID+"/status", login.Token,
		map[string]string{"status": "verified"}, nil); status != http.StatusOK {
		t.Fatalf("verify document: unexpected status %d", status)
	}
	var reviewed struct {
		Stats struct {
			Verified int `json:"verified"`
		} `json:"stats"`
	}
	if status := doJSON(t, http.MethodGet, "/documents", reg.Token, nil, &reviewed); status != http.StatusOK {
		t.Fatalf("list documents after review: unexpected status %d", status)
	}
	if reviewed.Stats.Verified != 1 {
		t.Fatalf("expected one verified document, got %+v", reviewed.Stats)
	}

	body := download(t, reg.Token, docID)
	if !bytes.Equal(body, testPDF) {
		t.Fatalf("downloaded document differs")
	}

	if status := doJSON(t, http.MethodDelete, "/documents/"+docID, reg.Token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete: unexpected status %d", status)
	}
	if status := doJSON(t, http.MethodGet, "/documents/"+docID, reg.Token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestSeededRoster(t *testing.T) {
	var login struct {
		Token string `json:"token"`
	}
	if status := doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": adminEmail, "password": adminPassword,
	}, &login); status != http.StatusOK {
		t.Fatalf("admin login: unexpected status %d", status)
	}

	var roster struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if status := doJSON(t, http.MethodGet, "/admin/users?q=rahul&status=approved", login.Token, nil, &roster); status != http.StatusOK {
		t.Fatalf("list roster: unexpected status %d", status)
	}
	if len(roster.Items) != 1 || roster.Items[0].ID != "U-1002" {
		t.Fatalf("unexpected roster: %+v", roster)
	}
}

var testPDF = []byte("%PDF-1.4\n% e2e test document\n")

func uploadDocument(t *testing.T, token string) string {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("doc_type", "Citizenship")
	part, err := writer.CreateFormFile("file", "citizenship.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(testPDF); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/documents", &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload: unexpected status %d: %s", resp.StatusCode, data)
	}

	var doc struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return doc.ID
}

func download(t *testing.T, token, docID string) []byte {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+"/documents/"+docID, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	return data
}

func doJSON(t *testing.T, method, path, token string, in, out any) int {
	t.Helper()

	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("LOG_LEVEL", "warn")
	_ = os.Setenv("STORE_BACKEND", "postgres")
	_ = os.Setenv("SEED_ROSTER", "true")
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "dekyc")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "dekyc_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("ADMIN_EMAIL", adminEmail)
	_ = os.Setenv("ADMIN_PASSWORD", adminPassword)
	_ = os.Setenv("STORAGE_BACKEND", "minio")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "dekyc-e2e")
	_ = os.Setenv("MQ_BACKEND", "rabbitmq")
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
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
			return errors.New("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string, cfg config.Config) error {
	migrationsURL := "file://" + filepath.Join(root, db.MigrationsDir)

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// startServer retries while the broker and object store finish booting.
func startServer(ctx context.Context, cfg config.Config) (*server.Server, error) {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	for {
		srv, err := server.New(ctx, cfg, log)
		if err == nil {
			go func() {
				_ = srv.Start()
			}()
			return srv, nil
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(2 * time.Second):
		}
	}
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
