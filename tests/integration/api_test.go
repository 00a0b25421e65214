package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"commute-rewards/config"
	httpHandler "commute-rewards/internal/adapter/http/handler"
	redisStorage "commute-rewards/internal/adapter/storage/redis"
	"commute-rewards/internal/core/ports"
	"commute-rewards/internal/service"
	"commute-rewards/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds the full application stack on in-memory storage with
// miniredis behind the Redis stores. The real HTTP layer, middleware,
// handlers and services are exercised end-to-end.

const testJWTSecret = "test-jwt-secret-key-32bytes!!"

type testApp struct {
	server   *httptest.Server
	redis    *miniredis.Miniredis
	tokenSvc ports.TokenService
	accounts *inMemoryAccountStore
	ledger   *inMemoryLedgerRepo
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)

	accountStore := newInMemoryAccountStore()
	ledgerRepo := newInMemoryLedgerRepo()
	voucherRepo := newInMemoryVoucherRepo()
	idempotencyRepo := newInMemoryIdempotencyRepo()

	log := logger.New("debug", false)
	tokenSvc := service.NewJWTTokenService(testJWTSecret, "test-issuer")
	catalogSvc := service.NewCatalogService(config.CatalogConfig{})
	auditSvc := service.NewAuditService(nil, log)
	earnSvc := service.NewEarnService(accountStore, ledgerRepo, idempotencyRepo, idempotencyCache, auditSvc, 1000, log)
	redeemSvc := service.NewRedemptionService(accountStore, ledgerRepo, voucherRepo, idempotencyRepo, idempotencyCache, catalogSvc, auditSvc, log)
	voucherSvc := service.NewVoucherService(voucherRepo, auditSvc, log)
	reportingSvc := service.NewReportingService(accountStore, ledgerRepo, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		EarnSvc:      earnSvc,
		RedeemSvc:    redeemSvc,
		VoucherSvc:   voucherSvc,
		ReportingSvc: reportingSvc,
		Catalog:      catalogSvc,
		TokenSvc:     tokenSvc,
		AccountStore: accountStore,
		Logger:       log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server:   server,
		redis:    mr,
		tokenSvc: tokenSvc,
		accounts: accountStore,
		ledger:   ledgerRepo,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

func (a *testApp) token(t *testing.T, accountID uuid.UUID) string {
	t.Helper()
	token, _, err := a.tokenSvc.Generate(accountID)
	require.NoError(t, err)
	return token
}

func (a *testApp) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

// --- Integration Tests ---

func TestIntegration_RewardCatalogIsPublic(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/api/v1/rewards")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var envelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotEmpty(t, envelope.Data)
	// Sorted by cost, cheapest first
	assert.Equal(t, "Free Coffee", envelope.Data[0]["title"])
	assert.Equal(t, float64(100), envelope.Data[0]["cost"])
}

func TestIntegration_EarnThenBalance(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	token := app.token(t, accountID)

	resp := app.do(t, "POST", "/api/v1/points/earn", token, `{"amount":50,"reason":"ride_completed"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, float64(50), data["new_balance"])

	resp = app.do(t, "GET", "/api/v1/points/balance", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = decodeData(t, resp)
	assert.Equal(t, float64(50), data["balance"])
}

func TestIntegration_EarnRequiresAuth(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp := app.do(t, "POST", "/api/v1/points/earn", "", `{"amount":50,"reason":"ride_completed"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_EarnUnknownReasonRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.token(t, uuid.New())
	resp := app.do(t, "POST", "/api/v1/points/earn", token, `{"amount":50,"reason":"teleport"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_EarnIdempotentRetry(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	token := app.token(t, accountID)
	body := `{"amount":75,"reason":"ride_shared","reference_id":"trip-881"}`

	resp := app.do(t, "POST", "/api/v1/points/earn", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decodeData(t, resp)

	// Same reference: replayed, not re-applied
	resp = app.do(t, "POST", "/api/v1/points/earn", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	second := decodeData(t, resp)

	assert.Equal(t, first["entry_id"], second["entry_id"])
	assert.Equal(t, first["new_balance"], second["new_balance"])

	resp = app.do(t, "GET", "/api/v1/points/balance", token, "")
	data := decodeData(t, resp)
	assert.Equal(t, float64(75), data["balance"])
}

func TestIntegration_RedeemFullFlow(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	token := app.token(t, accountID)

	// Earn enough for a coffee
	resp := app.do(t, "POST", "/api/v1/points/earn", token, `{"amount":120,"reason":"crowd_report"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Redeem with the correct catalog cost
	resp = app.do(t, "POST", "/api/v1/points/redeem", token, `{"reward_title":"Free Coffee","points_cost":100}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, float64(20), data["new_balance"])
	voucher := data["voucher"].(map[string]interface{})
	assert.Equal(t, "ACTIVE", voucher["status"])
	assert.Equal(t, "Free Coffee", voucher["reward_title"])
	voucherID := voucher["id"].(string)

	// Voucher shows up in the list
	resp = app.do(t, "GET", "/api/v1/vouchers", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listEnvelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listEnvelope))
	resp.Body.Close()
	require.Len(t, listEnvelope.Data, 1)

	// Mark it used
	resp = app.do(t, "POST", "/api/v1/vouchers/"+voucherID+"/status", token, `{"status":"used"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = decodeData(t, resp)
	assert.Equal(t, "USED", data["status"])

	// A second flip is rejected: terminal states never change
	resp = app.do(t, "POST", "/api/v1/vouchers/"+voucherID+"/status", token, `{"status":"expired"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIntegration_RedeemTamperedCostRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	token := app.token(t, accountID)

	resp := app.do(t, "POST", "/api/v1/points/earn", token, `{"amount":500,"reason":"referral"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Claimed cost of 1 for a 100-point reward
	resp = app.do(t, "POST", "/api/v1/points/redeem", token, `{"reward_title":"Free Coffee","points_cost":1}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Balance untouched
	resp2 := app.do(t, "GET", "/api/v1/points/balance", token, "")
	data := decodeData(t, resp2)
	assert.Equal(t, float64(500), data["balance"])
}

func TestIntegration_RedeemInsufficientBalance(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	token := app.token(t, accountID)

	resp := app.do(t, "POST", "/api/v1/points/earn", token, `{"amount":50,"reason":"ride_completed"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, "POST", "/api/v1/points/redeem", token, `{"reward_title":"Free Coffee","points_cost":100}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	resp2 := app.do(t, "GET", "/api/v1/points/balance", token, "")
	data := decodeData(t, resp2)
	assert.Equal(t, float64(50), data["balance"])
}

func TestIntegration_VoucherOfAnotherAccountHidden(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	owner := uuid.New()
	ownerToken := app.token(t, owner)

	resp := app.do(t, "POST", "/api/v1/points/earn", ownerToken, `{"amount":200,"reason":"referral"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, "POST", "/api/v1/points/redeem", ownerToken, `{"reward_title":"Free Coffee","points_cost":100}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := decodeData(t, resp)
	voucherID := data["voucher"].(map[string]interface{})["id"].(string)

	// A different account cannot see or flip it; not-found, not forbidden
	stranger := app.token(t, uuid.New())
	resp = app.do(t, "POST", "/api/v1/vouchers/"+voucherID+"/status", stranger, `{"status":"used"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_LedgerListAndVerify(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	token := app.token(t, accountID)

	for i := 0; i < 3; i++ {
		resp := app.do(t, "POST", "/api/v1/points/earn", token, `{"amount":100,"reason":"ride_completed"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}
	resp := app.do(t, "POST", "/api/v1/points/redeem", token, `{"reward_title":"₹50 Ride Voucher","points_cost":200}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Ledger has 4 entries in commit order
	resp = app.do(t, "GET", "/api/v1/points/ledger", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, float64(4), data["total"])
	items := data["items"].([]interface{})
	require.Len(t, items, 4)
	last := items[3].(map[string]interface{})
	assert.Equal(t, "REDEEM", last["kind"])
	assert.Equal(t, float64(-200), last["delta"])
	assert.Equal(t, float64(100), last["balance_after"])

	// Replaying the ledger reproduces the balance
	resp = app.do(t, "GET", "/api/v1/points/ledger/verify", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = decodeData(t, resp)
	assert.Equal(t, true, data["consistent"])
	assert.Equal(t, float64(100), data["balance"])
	assert.Equal(t, float64(100), data["ledger_sum"])
}

func TestIntegration_DeactivateAccount(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	token := app.token(t, accountID)

	resp := app.do(t, "POST", "/api/v1/points/earn", token, `{"amount":200,"reason":"referral"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, "POST", "/api/v1/points/redeem", token, `{"reward_title":"Free Coffee","points_cost":100}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = app.do(t, "DELETE", "/api/v1/account", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Further earning is rejected
	resp = app.do(t, "POST", "/api/v1/points/earn", token, `{"amount":10,"reason":"ride_completed"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Issued vouchers stay readable
	resp = app.do(t, "GET", "/api/v1/vouchers", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listEnvelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listEnvelope))
	resp.Body.Close()
	assert.Len(t, listEnvelope.Data, 1)
}

func TestIntegration_InvalidTokenRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp := app.do(t, "GET", "/api/v1/points/balance", "not-a-jwt", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_ErrorEnvelopeShape(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.token(t, uuid.New())
	resp := app.do(t, "POST", "/api/v1/points/redeem", token, `{"reward_title":"Unlisted Reward","points_cost":5}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "RWD_001", body["error_code"])
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, body["request_id"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestIntegration_BalanceOfFreshAccountIsZero(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.token(t, uuid.New())
	resp := app.do(t, "GET", "/api/v1/points/balance", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, float64(0), data["balance"])
}

func TestIntegration_LedgerPagination(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	token := app.token(t, accountID)

	for i := 0; i < 5; i++ {
		resp := app.do(t, "POST", "/api/v1/points/earn", token, `{"amount":10,"reason":"crowd_report"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := app.do(t, "GET", fmt.Sprintf("/api/v1/points/ledger?page=%d&page_size=%d", 2, 2), token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeData(t, resp)
	assert.Equal(t, float64(5), data["total"])
	assert.Equal(t, float64(2), data["page"])
	assert.Equal(t, float64(3), data["total_pages"])
	items := data["items"].([]interface{})
	require.Len(t, items, 2)
	// Page 2 of size 2 starts at the third entry
	first := items[0].(map[string]interface{})
	assert.Equal(t, float64(3), first["seq"])
}
