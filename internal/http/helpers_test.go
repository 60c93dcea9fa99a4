package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"ferremas/internal/config"
	"ferremas/internal/domain"
	"ferremas/internal/http/handlers"
	applog "ferremas/internal/log"
	"ferremas/internal/repos"
)

const adminKey = "boot.s3cret"

type testApp struct {
	app         *fiber.App
	db          *sqlx.DB
	deps        *handlers.Deps
	operatorKey string
}

func testConfig() config.Config {
	return config.Config{
		DBDriver:          "sqlite",
		DBDSN:             ":memory:",
		APIKeyAuth:        true,
		BodyLimitBytes:    1 << 20,
		DefaultCurrencyID: "CLP",
		DefaultTaxRate:    "19",
	}
}

// newTestApp wires the real router over a seeded in-memory database with one
// admin key (adminKey) and one operator key.
func newTestApp(t *testing.T, cfg config.Config) *testApp {
	t.Helper()
	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	deps := handlers.NewDeps(db, cfg, zap.NewNop())
	deps.Auth.Cost = bcrypt.MinCost
	ctx := context.Background()
	if err := deps.Auth.EnsureBootstrap(ctx, adminKey, "u-admin"); err != nil {
		t.Fatalf("bootstrap key: %v", err)
	}
	opKey, _, err := deps.Auth.Issue(ctx, "u-bodega", "bodega centro", domain.RoleOperator)
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	return &testApp{app: handlers.NewApp(deps, cfg), db: db, deps: deps, operatorKey: opKey}
}

// call sends a JSON request and decodes the JSON response into a generic value.
func (a *testApp) call(t *testing.T, method, path, key string, body any) (int, map[string]any) {
	t.Helper()
	status, raw := a.callRaw(t, method, path, key, body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s: %v body=%s", method, path, err, raw)
		}
	}
	return status, out
}

func (a *testApp) callList(t *testing.T, path, key string) (int, []map[string]any) {
	t.Helper()
	status, raw := a.callRaw(t, "GET", path, key, nil)
	var out []map[string]any
	if status == fiber.StatusOK {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode list %s: %v body=%s", path, err, raw)
		}
	}
	return status, out
}

func (a *testApp) callRaw(t *testing.T, method, path, key string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(handlers.APIKeyHeader, key)
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

// observeLogs routes the request logger to an in-memory observer for the
// duration of the test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	applog.Set(zap.New(core))
	t.Cleanup(func() { applog.Set(nil) })
	return logs
}

func fieldsOf(e observer.LoggedEntry) map[string]any {
	if f, ok := e.ContextMap()["fields"].(map[string]any); ok {
		return f
	}
	return map[string]any{}
}
