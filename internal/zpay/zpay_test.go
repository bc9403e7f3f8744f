package zpay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSign(t *testing.T) {
	params := map[string]string{
		"merchant_id":  "m-1",
		"out_trade_no": "ORDER_1",
		"total_fee":    "45",
	}

	sig := Sign(params, "secret")
	if len(sig) != 32 {
		t.Fatalf("signature length = %d, want 32", len(sig))
	}
	if sig != strings.ToUpper(sig) {
		t.Error("expected uppercase hex signature")
	}

	// Deterministic for the same inputs
	if again := Sign(params, "secret"); again != sig {
		t.Errorf("signature not deterministic: %s vs %s", sig, again)
	}

	// The sign field itself is excluded from the computation
	params["sign"] = sig
	if signed := Sign(params, "secret"); signed != sig {
		t.Errorf("sign field leaked into computation: %s vs %s", signed, sig)
	}

	// A different secret yields a different signature
	if other := Sign(params, "other-secret"); other == sig {
		t.Error("expected different signature for different secret")
	}
}

func TestSign_KeyOrderIndependent(t *testing.T) {
	a := Sign(map[string]string{"a": "1", "b": "2", "c": "3"}, "k")
	b := Sign(map[string]string{"c": "3", "a": "1", "b": "2"}, "k")
	if a != b {
		t.Errorf("signature depends on map construction order: %s vs %s", a, b)
	}
}

func TestVerifyCallback(t *testing.T) {
	client := NewClient(Config{MerchantID: "m-1", SecretKey: "secret", APIURL: "http://gw"})

	params := map[string]string{
		"out_trade_no": "ORDER_1",
		"trade_no":     "zp-1",
		"trade_status": "TRADE_SUCCESS",
		"total_fee":    "45",
	}
	params["sign"] = Sign(params, "secret")

	if !client.VerifyCallback(params) {
		t.Fatal("expected valid signature to verify")
	}

	// Tampered amount fails verification
	params["total_fee"] = "0.01"
	if client.VerifyCallback(params) {
		t.Error("expected tampered payload to fail verification")
	}

	// Missing signature fails
	delete(params, "sign")
	if client.VerifyCallback(params) {
		t.Error("expected missing signature to fail verification")
	}
}

func TestNormalizeCallback(t *testing.T) {
	params := NormalizeCallback(map[string]any{
		"out_trade_no": "ORDER_1",
		"total_fee":    float64(45),
		"fraction":     45.5,
		"flag":         true,
		"empty":        nil,
	})

	if params["out_trade_no"] != "ORDER_1" {
		t.Errorf("out_trade_no = %q", params["out_trade_no"])
	}
	// Whole numbers keep their shortest form for signature stability
	if params["total_fee"] != "45" {
		t.Errorf("total_fee = %q, want 45", params["total_fee"])
	}
	if params["fraction"] != "45.5" {
		t.Errorf("fraction = %q, want 45.5", params["fraction"])
	}
	if params["flag"] != "true" {
		t.Errorf("flag = %q, want true", params["flag"])
	}
	if params["empty"] != "" {
		t.Errorf("empty = %q, want empty string", params["empty"])
	}
}

func TestCreatePayment(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":{"pay_url":"https://gw/pay/abc","trade_no":"zp-1"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{MerchantID: "m-1", SecretKey: "secret", APIURL: server.URL})
	result := client.CreatePayment(context.Background(), CreateRequest{
		OrderRef:  "ORDER_1",
		Amount:    45,
		Credits:   550,
		NotifyURL: "https://app/api/v1/payment/notify",
		ReturnURL: "https://app/payment/return",
	})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.PayURL != "https://gw/pay/abc" {
		t.Errorf("pay url = %q", result.PayURL)
	}
	if result.TradeNo != "zp-1" {
		t.Errorf("trade no = %q", result.TradeNo)
	}
	if gotPath != "/api/pay/create" {
		t.Errorf("path = %q, want /api/pay/create", gotPath)
	}
}

func TestCreatePayment_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":400,"message":"invalid merchant"}`))
	}))
	defer server.Close()

	client := NewClient(Config{MerchantID: "m-1", SecretKey: "secret", APIURL: server.URL})
	result := client.CreatePayment(context.Background(), CreateRequest{OrderRef: "ORDER_1", Amount: 10, Credits: 100})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error != "invalid merchant" {
		t.Errorf("error = %q, want invalid merchant", result.Error)
	}
}

func TestCreatePayment_Unreachable(t *testing.T) {
	client := NewClient(Config{MerchantID: "m-1", SecretKey: "secret", APIURL: "http://127.0.0.1:1"})
	result := client.CreatePayment(context.Background(), CreateRequest{OrderRef: "ORDER_1", Amount: 10, Credits: 100})

	if result.Success {
		t.Fatal("expected failure for unreachable gateway")
	}
	if result.Error == "" {
		t.Error("expected error message")
	}
}

func TestSettledStatus(t *testing.T) {
	if !SettledStatus("TRADE_SUCCESS") {
		t.Error("TRADE_SUCCESS should settle")
	}
	if !SettledStatus("TRADE_FINISHED") {
		t.Error("TRADE_FINISHED should settle")
	}
	if SettledStatus("WAIT_BUYER_PAY") {
		t.Error("WAIT_BUYER_PAY should not settle")
	}
	if SettledStatus("") {
		t.Error("empty status should not settle")
	}
}
