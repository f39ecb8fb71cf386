package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/kwanza-pay/kwanza_wallet/internal/config"
	"github.com/kwanza-pay/kwanza_wallet/internal/logging"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	cfg := config.Config{AppName: "test", Env: "development", Port: "8080"}
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode != http.StatusNoContent {
		t.Fatalf("decode %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, decoded
}

func createWallet(t *testing.T, app *fiber.App, label string) float64 {
	t.Helper()
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/wallets", fiber.Map{"label": label})
	if status != http.StatusCreated {
		t.Fatalf("create wallet: status %d body %v", status, body)
	}
	return body["id"].(float64)
}

func createTransaction(t *testing.T, app *fiber.App, walletID float64, txid, amount string) map[string]any {
	t.Helper()
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/transactions", fiber.Map{
		"wallet_id": walletID,
		"txid":      txid,
		"amount":    amount,
	})
	if status != http.StatusCreated {
		t.Fatalf("create transaction %s: status %d body %v", txid, status, body)
	}
	return body
}

func TestCreateWalletIgnoresClientBalance(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/wallets", fiber.Map{
		"label":   "X",
		"balance": "100",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", status, body)
	}
	if body["balance"] != "0.00000000" {
		t.Fatalf("client balance must be ignored, got %v", body["balance"])
	}
}

func TestCreateWalletToleratesMalformedBalance(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/wallets", fiber.Map{
		"label":   "X",
		"balance": "garbage",
	})
	if status != http.StatusCreated {
		t.Fatalf("non-numeric balance must be discarded, got %d (%v)", status, body)
	}
	if body["balance"] != "0.00000000" {
		t.Fatalf("expected zero balance, got %v", body["balance"])
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/wallets", fiber.Map{
		"label":   "Y",
		"balance": fiber.Map{"nested": true},
	})
	if status != http.StatusCreated {
		t.Fatalf("structured balance must be discarded, got %d (%v)", status, body)
	}
	if body["balance"] != "0.00000000" {
		t.Fatalf("expected zero balance, got %v", body["balance"])
	}
}

func TestUpdateWalletToleratesMalformedBalance(t *testing.T) {
	app := newTestApp(t)

	id := createWallet(t, app, "before")
	createTransaction(t, app, id, "fund-garbage", "5")

	status, body := doJSON(t, app, fiber.MethodPut, fmt.Sprintf("/api/v1/wallets/%.0f", id), fiber.Map{
		"label":   "after",
		"balance": "garbage",
	})
	if status != http.StatusOK {
		t.Fatalf("non-numeric balance must be discarded on update, got %d (%v)", status, body)
	}
	if body["label"] != "after" {
		t.Fatalf("expected updated label, got %v", body["label"])
	}
	if body["balance"] != "5.00000000" {
		t.Fatalf("balance must survive untouched, got %v", body["balance"])
	}
}

func TestUpdateWalletIgnoresBalanceAttempt(t *testing.T) {
	app := newTestApp(t)

	id := createWallet(t, app, "before")
	createTransaction(t, app, id, "fund-upd", "10")

	status, body := doJSON(t, app, fiber.MethodPut, fmt.Sprintf("/api/v1/wallets/%.0f", id), fiber.Map{
		"label":   "after",
		"balance": "999",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if body["label"] != "after" {
		t.Fatalf("expected updated label, got %v", body["label"])
	}
	if body["balance"] != "10.00000000" {
		t.Fatalf("balance must survive label update untouched, got %v", body["balance"])
	}
}

func TestWalletNotFound(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodGet, "/api/v1/wallets/999", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	app := newTestApp(t)

	id := createWallet(t, app, "spending")
	createTransaction(t, app, id, "fund", "15")

	body := createTransaction(t, app, id, "cve", "-1.3")
	if body["amount"] != "-1.30000000" {
		t.Fatalf("expected fixed 8-digit amount, got %v", body["amount"])
	}
	if body["created_at"] == nil || body["created_at"] == "" {
		t.Fatal("expected a created_at timestamp")
	}

	status, walletBody := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/wallets/%.0f", id), nil)
	if status != http.StatusOK {
		t.Fatalf("get wallet: %d", status)
	}
	if walletBody["balance"] != "13.70000000" {
		t.Fatalf("expected balance 13.70000000, got %v", walletBody["balance"])
	}

	txID := body["id"].(float64)
	status, fetched := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/transactions/%.0f", txID), nil)
	if status != http.StatusOK {
		t.Fatalf("get transaction: %d", status)
	}
	if fetched["txid"] != "cve" {
		t.Fatalf("unexpected transaction body %v", fetched)
	}
}

func TestTransactionValidationFailures(t *testing.T) {
	app := newTestApp(t)

	id := createWallet(t, app, "validation")
	createTransaction(t, app, id, "seed", "1")

	cases := []struct {
		name string
		body fiber.Map
	}{
		{"zero amount", fiber.Map{"wallet_id": id, "txid": "z", "amount": "0.00000000"}},
		{"insufficient balance", fiber.Map{"wallet_id": id, "txid": "over", "amount": "-1.3"}},
		{"duplicate txid", fiber.Map{"wallet_id": id, "txid": "seed", "amount": "33"}},
		{"unknown wallet", fiber.Map{"wallet_id": 9999, "txid": "ghost", "amount": "1"}},
	}
	for _, tc := range cases {
		status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/transactions", tc.body)
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%v)", tc.name, status, body)
		}
	}

	// None of the rejections may have moved the balance.
	status, walletBody := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/wallets/%.0f", id), nil)
	if status != http.StatusOK {
		t.Fatalf("get wallet: %d", status)
	}
	if walletBody["balance"] != "1.00000000" {
		t.Fatalf("expected balance 1.00000000, got %v", walletBody["balance"])
	}
}

func TestTransactionsAreImmutable(t *testing.T) {
	app := newTestApp(t)

	id := createWallet(t, app, "immutable")
	body := createTransaction(t, app, id, "frozen", "2")
	txPath := fmt.Sprintf("/api/v1/transactions/%.0f", body["id"].(float64))

	for _, method := range []string{fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete} {
		status, _ := doJSON(t, app, method, txPath, fiber.Map{"amount": "-15"})
		if status != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", method, status)
		}
	}

	status, fetched := doJSON(t, app, fiber.MethodGet, txPath, nil)
	if status != http.StatusOK || fetched["amount"] != "2.00000000" {
		t.Fatalf("transaction changed: %d %v", status, fetched)
	}
}

func TestTransactionListPaginationShape(t *testing.T) {
	app := newTestApp(t)

	id := createWallet(t, app, "list")
	for i := 0; i < 3; i++ {
		createTransaction(t, app, id, fmt.Sprintf("list-%d", i), "2")
	}

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/transactions?ordering=created_at&page=1&page_size=2", nil)
	if status != http.StatusOK {
		t.Fatalf("list transactions: %d", status)
	}

	results := body["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("expected 2 results on first page, got %d", len(results))
	}

	meta := body["meta"].(map[string]any)["pagination"].(map[string]any)
	if meta["count"].(float64) != 3 || meta["page"].(float64) != 1 || meta["pages"].(float64) != 2 {
		t.Fatalf("unexpected pagination meta %v", meta)
	}

	links := body["links"].(map[string]any)
	if links["next"] == nil {
		t.Fatal("expected a next link on page 1 of 2")
	}
	if links["prev"] != nil {
		t.Fatal("expected no prev link on page 1")
	}
}

func TestTransactionListFilters(t *testing.T) {
	app := newTestApp(t)

	a := createWallet(t, app, "A")
	b := createWallet(t, app, "B")
	createTransaction(t, app, a, "Alpha-1", "5")
	createTransaction(t, app, a, "alpha-2", "10")
	createTransaction(t, app, b, "beta-1", "20")

	status, body := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/api/v1/transactions?wallet_id=%.0f", a), nil)
	if status != http.StatusOK {
		t.Fatalf("filter by wallet: %d", status)
	}
	if body["meta"].(map[string]any)["pagination"].(map[string]any)["count"].(float64) != 2 {
		t.Fatalf("wallet filter miscounted: %v", body["meta"])
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/transactions?txid=ALPHA", nil)
	if status != http.StatusOK {
		t.Fatalf("filter by txid: %d", status)
	}
	if body["meta"].(map[string]any)["pagination"].(map[string]any)["count"].(float64) != 2 {
		t.Fatalf("txid substring filter should be case-insensitive: %v", body["meta"])
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/transactions?min_amount=10&max_amount=20&ordering=-amount", nil)
	if status != http.StatusOK {
		t.Fatalf("filter by amount: %d", status)
	}
	results := body["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("expected 2 amount matches, got %d", len(results))
	}
	if results[0].(map[string]any)["amount"] != "20.00000000" {
		t.Fatalf("expected descending amount order, got %v", results[0])
	}
}

func TestHealthzReportsDevFallbacks(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodGet, "/healthz", nil)
	if status != http.StatusOK {
		t.Fatalf("dev fallbacks must not fail readiness, got %d (%v)", status, body)
	}

	components := body["status"].(map[string]any)
	if components["ledger"] != "in-memory" {
		t.Fatalf("expected in-memory ledger status, got %v", components["ledger"])
	}
	if components["rate_limiter"] != "disabled" {
		t.Fatalf("expected disabled rate limiter status, got %v", components["rate_limiter"])
	}
	if body["env"] != "development" {
		t.Fatalf("expected development env, got %v", body["env"])
	}
}

func TestDeleteWalletCascadesOverHTTP(t *testing.T) {
	app := newTestApp(t)

	id := createWallet(t, app, "doomed")
	createTransaction(t, app, id, "doomed-1", "4")

	req := httptest.NewRequest(fiber.MethodDelete, fmt.Sprintf("/api/v1/wallets/%.0f", id), nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("delete wallet: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/transactions", nil)
	if status != http.StatusOK {
		t.Fatalf("list after delete: %d", status)
	}
	if body["meta"].(map[string]any)["pagination"].(map[string]any)["count"].(float64) != 0 {
		t.Fatalf("expected transactions gone with wallet: %v", body["meta"])
	}
}
