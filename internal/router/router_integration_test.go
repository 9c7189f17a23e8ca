//go:build integration

package router

// End-to-end tests against real Postgres and Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/config"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/infra"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/middleware"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/service"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/worker"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const jwtSecret = "integration-secret"

type testEnv struct {
	server *httptest.Server
	token  string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("inventory_test"),
		tcPostgres.WithUsername("inventory"),
		tcPostgres.WithPassword("inventory"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                  "test",
		JWTSecret:            jwtSecret,
		DatabaseURL:          pgURL,
		RedisURL:             rdURL,
		WorkerPoolSize:       1,
		AuditBatchSize:       50,
		AllocationCandidates: 3,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, infra.DatabaseOptions{MaxOpenConns: 20})
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	workerCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	breaker := infra.NewBreaker(infra.BreakerConfig{Name: "test"})
	stock := service.NewStockService(repository.NewVariantRepository(db), repository.NewStockMovementRepository(db), cfg.AuditBatchSize)
	auditor := worker.NewAuditor(stock, rdb, breaker)
	worker.StartWorkerPool(workerCtx, rdb, auditor.Handlers(), cfg.WorkerPoolSize)

	r := New(cfg, Deps{
		DB:         db,
		Redis:      rdb,
		Breaker:    breaker,
		Auditor:    auditor,
		Dispatcher: worker.NewDispatcher(rdb),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	claims := middleware.JWTClaims{
		UserID: "e2e",
		Role:   middleware.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)

	return &testEnv{server: srv, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func (e *testEnv) createParent(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/v1/products", map[string]any{
		"name": "iPhone 13",
		"variants": []map[string]any{{
			"kind": "parent", "name": "iPhone 13 128GB",
			"cost_price": "95000", "selling_price": "120000",
		}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p dto.ProductResponse
	decodeJSON(t, resp, &p)
	require.Len(t, p.Variants, 1)
	return p.Variants[0].ID
}

func TestE2E_ReceiveAllocateDuplicate(t *testing.T) {
	env := setupTestEnv(t)
	parentID := env.createParent(t)

	for _, serial := range []string{"IMEI-1", "IMEI-2", "IMEI-3"} {
		resp := env.do(t, http.MethodPost, "/v1/variants/"+parentID+"/units", map[string]any{"serial": serial})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var u dto.UnitResponse
		decodeJSON(t, resp, &u)
		assert.Equal(t, "120000", u.SellingPrice.String())
	}

	resp := env.do(t, http.MethodPost, "/v1/variants/"+parentID+"/allocate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sold dto.UnitResponse
	decodeJSON(t, resp, &sold)
	assert.Equal(t, "IMEI-1", sold.Serial)

	resp = env.do(t, http.MethodPost, "/v1/variants/"+parentID+"/units", map[string]any{"serial": "IMEI-2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/v1/variants/"+parentID, nil)
	var v dto.VariantResponse
	decodeJSON(t, resp, &v)
	assert.Equal(t, 2, v.Quantity)
}

func TestE2E_ConcurrentAllocationUnderRowLocks(t *testing.T) {
	env := setupTestEnv(t)
	parentID := env.createParent(t)
	for i := 0; i < 5; i++ {
		resp := env.do(t, http.MethodPost, "/v1/variants/"+parentID+"/units", map[string]any{"serial": fmt.Sprintf("CC-%d", i)})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
		units    = map[string]bool{}
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := env.do(t, http.MethodPost, "/v1/variants/"+parentID+"/allocate", nil)
			var u dto.UnitResponse
			if resp.StatusCode == http.StatusOK {
				decodeJSON(t, resp, &u)
			} else {
				resp.Body.Close()
			}
			mu.Lock()
			defer mu.Unlock()
			statuses[resp.StatusCode]++
			if u.ID != "" {
				assert.False(t, units[u.ID], "unit %s sold twice", u.ID)
				units[u.ID] = true
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, statuses[http.StatusOK])
	assert.Equal(t, 7, statuses[http.StatusConflict])
}

func TestE2E_AsyncAuditStoresReport(t *testing.T) {
	env := setupTestEnv(t)
	env.createParent(t)

	resp := env.do(t, http.MethodPost, "/v1/stock/audit/async", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		resp := env.do(t, http.MethodGet, "/v1/stock/audit/last", nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var report dto.AuditReport
		return json.NewDecoder(resp.Body).Decode(&report) == nil && report.Checked == 1
	}, 20*time.Second, 200*time.Millisecond)
}
