package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/pixforge/pixforge-api/internal/models"
	"github.com/pixforge/pixforge-api/internal/repository"
	"github.com/pixforge/pixforge-api/internal/zpay"
)

const testZPaySecret = "test-zpay-secret"

func newPaymentService(t *testing.T, repos *repository.Repositories, gatewayURL string) *PaymentService {
	t.Helper()
	cfg := testConfig("")
	cfg.ZPayMerchantID = "m-1"
	cfg.ZPaySecretKey = testZPaySecret
	cfg.ZPayAPIURL = gatewayURL
	gateway := zpay.NewClient(zpay.Config{
		MerchantID: cfg.ZPayMerchantID,
		SecretKey:  cfg.ZPaySecretKey,
		APIURL:     cfg.ZPayAPIURL,
	})
	return NewPaymentService(cfg, repos, gateway, testLogger())
}

// newZPayStub serves a gateway that accepts every creation request.
func newZPayStub(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pay/create" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"pay_url":"https://gw/pay/abc","trade_no":"zp-1"}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

// signedCallback builds a settlement callback body for the payment.
func signedCallback(payment *models.Payment, tradeStatus string) map[string]any {
	params := map[string]string{
		"out_trade_no": payment.OrderRef,
		"trade_no":     "zp-1",
		"trade_status": tradeStatus,
		"total_fee":    strconv.FormatFloat(payment.Amount, 'f', -1, 64),
	}
	params["sign"] = zpay.Sign(params, testZPaySecret)

	body := make(map[string]any, len(params))
	for k, v := range params {
		body[k] = v
	}
	return body
}

func TestPaymentService_CreateOrder(t *testing.T) {
	gateway := newZPayStub(t)
	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, gateway.URL)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 0)

	result, err := svc.CreateOrder(ctx, "u1", 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PayURL != "https://gw/pay/abc" {
		t.Errorf("pay url = %q", result.PayURL)
	}
	if result.Payment.Amount != 45.0 {
		t.Errorf("amount = %v, want 45.0", result.Payment.Amount)
	}
	// 500 base credits plus the 50 bonus
	if result.Payment.Credits != 550 {
		t.Errorf("credits = %d, want 550", result.Payment.Credits)
	}
	if result.Payment.GatewayTradeNo != "zp-1" {
		t.Errorf("trade no = %q, want zp-1", result.Payment.GatewayTradeNo)
	}

	// Nothing is granted before settlement
	if credits := userCredits(t, repos, "u1"); credits != 0 {
		t.Errorf("credits = %d, want 0 before settlement", credits)
	}
}

func TestPaymentService_CreateOrderInvalidPackage(t *testing.T) {
	gateway := newZPayStub(t)
	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, gateway.URL)

	createTestUser(t, repos, "u1", 0)

	_, err := svc.CreateOrder(context.Background(), "u1", 123)
	if !errors.Is(err, ErrInvalidPackage) {
		t.Fatalf("err = %v, want ErrInvalidPackage", err)
	}
}

func TestPaymentService_CreateOrderGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":500,"message":"gateway down"}`))
	}))
	defer server.Close()

	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, server.URL)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 0)

	_, err := svc.CreateOrder(ctx, "u1", 100)
	if !errors.Is(err, ErrGatewayError) {
		t.Fatalf("err = %v, want ErrGatewayError", err)
	}
}

func TestPaymentService_HandleNotifySettles(t *testing.T) {
	gateway := newZPayStub(t)
	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, gateway.URL)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 10)
	result, err := svc.CreateOrder(ctx, "u1", 500)
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	if err := svc.HandleNotify(ctx, signedCallback(result.Payment, "TRADE_SUCCESS")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment, _ := repos.Payment.GetByOrderRef(ctx, result.Payment.OrderRef)
	if payment.Status != models.PaymentStatusPaid {
		t.Errorf("status = %s, want PAID", payment.Status)
	}
	if credits := userCredits(t, repos, "u1"); credits != 560 {
		t.Errorf("credits = %d, want 560 after settlement", credits)
	}
}

func TestPaymentService_HandleNotifyReplay(t *testing.T) {
	gateway := newZPayStub(t)
	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, gateway.URL)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 0)
	result, err := svc.CreateOrder(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	callback := signedCallback(result.Payment, "TRADE_SUCCESS")
	if err := svc.HandleNotify(ctx, callback); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	// The gateway retries; the replay succeeds without granting twice
	if err := svc.HandleNotify(ctx, callback); err != nil {
		t.Fatalf("replayed notify: %v", err)
	}
	if credits := userCredits(t, repos, "u1"); credits != 100 {
		t.Errorf("credits = %d, want 100 after replay", credits)
	}
}

func TestPaymentService_HandleNotifyBadSignature(t *testing.T) {
	gateway := newZPayStub(t)
	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, gateway.URL)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 0)
	result, err := svc.CreateOrder(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	callback := signedCallback(result.Payment, "TRADE_SUCCESS")
	callback["total_fee"] = "0.01"

	if err := svc.HandleNotify(ctx, callback); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	if credits := userCredits(t, repos, "u1"); credits != 0 {
		t.Errorf("credits = %d, want 0 after rejected callback", credits)
	}
}

func TestPaymentService_HandleNotifyAmountMismatch(t *testing.T) {
	gateway := newZPayStub(t)
	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, gateway.URL)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 0)
	result, err := svc.CreateOrder(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	// Correctly signed but for the wrong amount
	params := map[string]string{
		"out_trade_no": result.Payment.OrderRef,
		"trade_no":     "zp-1",
		"trade_status": "TRADE_SUCCESS",
		"total_fee":    "0.01",
	}
	params["sign"] = zpay.Sign(params, testZPaySecret)
	body := make(map[string]any, len(params))
	for k, v := range params {
		body[k] = v
	}

	if err := svc.HandleNotify(ctx, body); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("err = %v, want ErrAmountMismatch", err)
	}
	if credits := userCredits(t, repos, "u1"); credits != 0 {
		t.Errorf("credits = %d, want 0", credits)
	}
}

func TestPaymentService_HandleNotifyUnknownOrder(t *testing.T) {
	gateway := newZPayStub(t)
	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, gateway.URL)

	params := map[string]string{
		"out_trade_no": "ORDER_NOBODY",
		"trade_status": "TRADE_SUCCESS",
		"total_fee":    "10",
	}
	params["sign"] = zpay.Sign(params, testZPaySecret)
	body := make(map[string]any, len(params))
	for k, v := range params {
		body[k] = v
	}

	if err := svc.HandleNotify(context.Background(), body); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
}

func TestPaymentService_HandleNotifyFailedTrade(t *testing.T) {
	gateway := newZPayStub(t)
	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, gateway.URL)
	ctx := context.Background()

	createTestUser(t, repos, "u1", 0)
	result, err := svc.CreateOrder(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	if err := svc.HandleNotify(ctx, signedCallback(result.Payment, "TRADE_CLOSED")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payment, _ := repos.Payment.GetByOrderRef(ctx, result.Payment.OrderRef)
	if payment.Status != models.PaymentStatusFailed {
		t.Errorf("status = %s, want FAILED", payment.Status)
	}
	if credits := userCredits(t, repos, "u1"); credits != 0 {
		t.Errorf("credits = %d, want 0", credits)
	}
}

func TestPaymentService_Packages(t *testing.T) {
	gateway := newZPayStub(t)
	repos := setupTestRepos(t)
	svc := newPaymentService(t, repos, gateway.URL)

	packages := svc.Packages()
	if len(packages) != 5 {
		t.Fatalf("got %d packages, want 5", len(packages))
	}
	for _, pkg := range packages {
		if pkg.Credits <= 0 || pkg.Price <= 0 {
			t.Errorf("package %+v has non-positive fields", pkg)
		}
		if pkg.TotalCredits() != pkg.Credits+pkg.Bonus {
			t.Errorf("package %+v total = %d", pkg, pkg.TotalCredits())
		}
	}
}
