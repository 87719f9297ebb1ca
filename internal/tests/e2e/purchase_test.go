//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/mycolab/apiserver/config"
	"github.com/mycolab/apiserver/internal/db"
	"github.com/mycolab/apiserver/internal/server"
	"golang.org/x/crypto/bcrypt"
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

func TestPurchaseIngestionLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("grower_%d", time.Now().UnixNano())
	password := "testpass123!"

	if err := seedUser(username, password); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	token, err := login(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	item := fmt.Sprintf("Agar %d", time.Now().UnixNano())
	vendor := fmt.Sprintf("SupplyCo %d", time.Now().UnixNano())

	first, err := ingestPurchase(t, baseURL, token, item, vendor)
	if err != nil {
		t.Fatalf("first ingestion: %v", err)
	}
	if first.PurchaseLog.ID == 0 {
		t.Fatalf("expected purchase log id to be set")
	}
	if first.ReceiptID == 0 {
		t.Fatalf("expected receipt id to be set")
	}
	if first.AmountOnHand != 2 {
		t.Fatalf("expected balance 2 after first ingestion, got %v", first.AmountOnHand)
	}

	// The same item and vendor again: no new rows for either, the
	// balance accumulates.
	second, err := ingestPurchase(t, baseURL, token, item, vendor)
	if err != nil {
		t.Fatalf("second ingestion: %v", err)
	}
	if second.AmountOnHand != 4 {
		t.Fatalf("expected balance 4 after second ingestion, got %v", second.AmountOnHand)
	}
	if second.PurchaseLog.ItemID != first.PurchaseLog.ItemID {
		t.Fatalf("expected item reuse, got %d and %d", first.PurchaseLog.ItemID, second.PurchaseLog.ItemID)
	}
	if second.PurchaseLog.VendorID != first.PurchaseLog.VendorID {
		t.Fatalf("expected vendor reuse, got %d and %d", first.PurchaseLog.VendorID, second.PurchaseLog.VendorID)
	}
	if second.PurchaseLog.InventoryLogID != first.PurchaseLog.InventoryLogID {
		t.Fatalf("expected shared inventory log, got %d and %d", first.PurchaseLog.InventoryLogID, second.PurchaseLog.InventoryLogID)
	}

	fetched, err := getPurchaseLog(t, baseURL, token, first.PurchaseLog.ID)
	if err != nil {
		t.Fatalf("get purchase log: %v", err)
	}
	if fetched.ItemID != first.PurchaseLog.ItemID ||
		fetched.VendorID != first.PurchaseLog.VendorID ||
		fetched.InventoryLogID != first.PurchaseLog.InventoryLogID {
		t.Fatalf("round trip mismatch: %+v vs %+v", fetched, first.PurchaseLog)
	}
}

// Two ingestions race on a brand-new item and vendor name: exactly one
// row is created for each and both purchases land on the same balance.
func TestConcurrentIngestionSharedRows(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("racer_%d", time.Now().UnixNano())
	password := "testpass123!"

	if err := seedUser(username, password); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := login(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	item := fmt.Sprintf("Oats %d", time.Now().UnixNano())
	vendor := fmt.Sprintf("GrainCo %d", time.Now().UnixNano())

	var (
		wg      sync.WaitGroup
		results [2]ingestionResponse
		errs    [2]error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ingestPurchase(t, baseURL, token, item, vendor)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("ingestion %d: %v", i, err)
		}
	}

	if results[0].PurchaseLog.VendorID != results[1].PurchaseLog.VendorID {
		t.Fatalf("vendor rows diverged: %d and %d", results[0].PurchaseLog.VendorID, results[1].PurchaseLog.VendorID)
	}
	if results[0].PurchaseLog.ItemID != results[1].PurchaseLog.ItemID {
		t.Fatalf("item rows diverged: %d and %d", results[0].PurchaseLog.ItemID, results[1].PurchaseLog.ItemID)
	}
	if results[0].PurchaseLog.InventoryLogID != results[1].PurchaseLog.InventoryLogID {
		t.Fatalf("inventory logs diverged: %d and %d", results[0].PurchaseLog.InventoryLogID, results[1].PurchaseLog.InventoryLogID)
	}

	// Each ingestion added 2; whichever committed second saw 4.
	if sum := results[0].AmountOnHand + results[1].AmountOnHand; sum != 6 {
		t.Fatalf("expected balances 2 and 4, got %v and %v", results[0].AmountOnHand, results[1].AmountOnHand)
	}

	if n := queryInt(t, `SELECT COUNT(*) FROM vendors WHERE name = $1`, vendor); n != 1 {
		t.Fatalf("expected exactly one vendor row, got %d", n)
	}
	if n := queryInt(t, `SELECT COUNT(*) FROM raw_materials WHERE name = $1`, item); n != 1 {
		t.Fatalf("expected exactly one material row, got %d", n)
	}
	var balance float64
	queryRow(t, &balance, `SELECT amount_on_hand FROM raw_material_inventory_logs WHERE item_id = $1`, results[0].PurchaseLog.ItemID)
	if balance != 4 {
		t.Fatalf("expected stored balance 4, got %v", balance)
	}
}

// Deleting a material cascades to its inventory log, but a material
// with purchase history is protected.
func TestMaterialDeletePolicy(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("curator_%d", time.Now().UnixNano())
	password := "testpass123!"

	if err := seedUser(username, password); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := login(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	name := fmt.Sprintf("Vermiculite %d", time.Now().UnixNano())
	form := url.Values{"name": {name}, "category": {"substrate"}}
	resp, err := doForm(t, http.MethodPost, baseURL+"/raw-materials/", token, form)
	if err != nil {
		t.Fatalf("create material: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create material status %d", resp.StatusCode)
	}

	var itemID int
	queryRow(t, &itemID, `SELECT id FROM raw_materials WHERE name = $1`, name)
	if n := queryInt(t, `SELECT COUNT(*) FROM raw_material_inventory_logs WHERE item_id = $1`, itemID); n != 1 {
		t.Fatalf("expected one inventory log for fresh material, got %d", n)
	}

	resp, err = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/raw-materials/%d", baseURL, itemID), token, nil)
	if err != nil {
		t.Fatalf("delete material: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 deleting unused material, got %d", resp.StatusCode)
	}
	if n := queryInt(t, `SELECT COUNT(*) FROM raw_material_inventory_logs WHERE item_id = $1`, itemID); n != 0 {
		t.Fatalf("expected inventory log to cascade away, got %d rows", n)
	}

	item := fmt.Sprintf("Rye %d", time.Now().UnixNano())
	vendor := fmt.Sprintf("FarmCo %d", time.Now().UnixNano())
	ingested, err := ingestPurchase(t, baseURL, token, item, vendor)
	if err != nil {
		t.Fatalf("ingestion: %v", err)
	}

	resp, err = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/raw-materials/%d", baseURL, ingested.PurchaseLog.ItemID), token, nil)
	if err != nil {
		t.Fatalf("delete purchased material: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 deleting material with history, got %d", resp.StatusCode)
	}
	if n := queryInt(t, `SELECT COUNT(*) FROM raw_material_inventory_logs WHERE item_id = $1`, ingested.PurchaseLog.ItemID); n != 1 {
		t.Fatalf("expected inventory log to survive rejected delete, got %d rows", n)
	}
}

func TestSignedUploadURL(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("uploader_%d", time.Now().UnixNano())
	password := "testpass123!"

	if err := seedUser(username, password); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := login(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	body, _ := json.Marshal(map[string]string{
		"filename":     "receipt.jpg",
		"content_type": "image/jpeg",
	})
	resp, err := doJSON(t, http.MethodPost, baseURL+"/receipts/get-signed-upload-url", token, body)
	if err != nil {
		t.Fatalf("request grant: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("grant status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var grant struct {
		UploadURL string `json:"uploadUrl"`
		FileKey   string `json:"fileKey"`
		PublicURL string `json:"publicUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		t.Fatalf("decode grant: %v", err)
	}
	if grant.UploadURL == "" || grant.FileKey == "" {
		t.Fatalf("incomplete grant: %+v", grant)
	}
	if !strings.HasSuffix(grant.FileKey, "receipt.jpg") {
		t.Fatalf("unexpected file key: %q", grant.FileKey)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("revoked_%d", time.Now().UnixNano())
	password := "testpass123!"

	if err := seedUser(username, password); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := login(t, baseURL, username, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	resp, err := doJSON(t, http.MethodGet, baseURL+"/tasks/", token, nil)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected fresh token to list tasks, got %d", resp.StatusCode)
	}

	resp, err = doJSON(t, http.MethodPost, baseURL+"/auth/logout", token, nil)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status %d", resp.StatusCode)
	}

	resp, err = doJSON(t, http.MethodGet, baseURL+"/tasks/", token, nil)
	if err != nil {
		t.Fatalf("list tasks after logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", resp.StatusCode)
	}
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

type purchaseLogView struct {
	ID             int `json:"id"`
	ItemID         int `json:"item_id"`
	VendorID       int `json:"vendor_id"`
	InventoryLogID int `json:"inventory_log_id"`
}

type ingestionResponse struct {
	PurchaseLog  purchaseLogView `json:"raw_material_purchase_log"`
	ReceiptID    int             `json:"receipt_id"`
	AmountOnHand float64         `json:"amount_on_hand"`
}

// seedUser inserts an account directly; every API route except login
// requires an existing authenticated user.
func seedUser(username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}

	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, is_admin, provider, created_at)
		 VALUES ($1, $2, FALSE, 'local', NOW())`,
		username, string(hashed),
	)
	return err
}

func login(t *testing.T, baseURL, username, password string) (string, error) {
	t.Helper()

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	resp, err := doJSON(t, http.MethodPost, baseURL+"/auth/login", "", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("missing access token in login response")
	}
	return parsed.AccessToken, nil
}

func ingestPurchase(t *testing.T, baseURL, token, item, vendor string) (ingestionResponse, error) {
	t.Helper()

	payload := map[string]any{
		"item":              item,
		"category":          "media",
		"subcategory":       "gelling agent",
		"brand":             "LabPure",
		"purchaseDate":      time.Now().UTC().Format(time.RFC3339Nano),
		"purchaseQuantity":  1.0,
		"purchaseUnit":      "bag",
		"inventoryQuantity": 2.0,
		"inventoryUnit":     "kg",
		"cost":              24.99,
		"notes":             "bulk order",
		"vendor":            vendor,
		"vendorPhone":       "555-0100",
		"vendorEmail":       "orders@supplyco.test",
		"vendorWebsite":     "https://supplyco.test",
		"filename":          "receipt.jpg",
		"imageUrl":          "https://storage.test/receipt.jpg",
		"receiptMemo":       "agar restock",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ingestionResponse{}, err
	}

	resp, err := doJSON(t, http.MethodPost, baseURL+"/purchase-logs/raw-materials/", token, body)
	if err != nil {
		return ingestionResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return ingestionResponse{}, fmt.Errorf("ingestion status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed ingestionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ingestionResponse{}, err
	}
	return parsed, nil
}

func getPurchaseLog(t *testing.T, baseURL, token string, id int) (purchaseLogView, error) {
	t.Helper()

	var wrapper struct {
		PurchaseLog purchaseLogView `json:"raw_material_purchase_log"`
	}

	resp, err := doJSON(t, http.MethodGet, fmt.Sprintf("%s/purchase-logs/raw-materials/%d", baseURL, id), token, nil)
	if err != nil {
		return wrapper.PurchaseLog, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return wrapper.PurchaseLog, fmt.Errorf("get status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return wrapper.PurchaseLog, err
	}
	return wrapper.PurchaseLog, nil
}

func doForm(t *testing.T, method, target, token string, form url.Values) (*http.Response, error) {
	t.Helper()

	req, err := http.NewRequest(method, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}

func queryInt(t *testing.T, query string, args ...any) int {
	t.Helper()

	var n int
	queryRow(t, &n, query, args...)
	return n
}

func queryRow(t *testing.T, dest any, query string, args ...any) {
	t.Helper()

	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.QueryRowContext(ctx, query, args...).Scan(dest); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
}

func doJSON(t *testing.T, method, url, token string, body []byte) (*http.Response, error) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg))
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
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg))
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
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "mycolab")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "mycolab_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "minio")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "receipts")
	_ = os.Setenv("STORAGE_PUBLIC_BASE_URL", "http://localhost:9000/receipts")
	_ = os.Setenv("MQ_BACKEND", "none")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
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
