// Package zpay integrates the Z-Pay payment gateway: MD5 request signing,
// payment creation, and callback verification.
package zpay

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds gateway calls.
const DefaultTimeout = 10 * time.Second

// Config holds gateway credentials and endpoint.
type Config struct {
	MerchantID string
	SecretKey  string
	APIURL     string
}

// Client is a Z-Pay gateway client.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a gateway client.
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Sign computes the gateway signature: all fields except "sign" sorted by
// key, joined as key=value pairs with "&", with "&key=<secret>" appended,
// MD5 hashed and hex uppercased. The gateway recomputes this exact string,
// so the format cannot vary.
func Sign(params map[string]string, secretKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	sb.WriteString("&key=")
	sb.WriteString(secretKey)

	sum := md5.Sum([]byte(sb.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// VerifyCallback checks the "sign" field of a callback payload against a
// recomputation over the remaining fields.
func (c *Client) VerifyCallback(params map[string]string) bool {
	sign, ok := params["sign"]
	if !ok || sign == "" {
		return false
	}
	return sign == Sign(params, c.config.SecretKey)
}

// NormalizeCallback flattens a decoded JSON callback body into the string
// map the signature is computed over. Numbers keep their shortest decimal
// form, so 45 stays "45" rather than "45.000000".
func NormalizeCallback(body map[string]any) map[string]string {
	params := make(map[string]string, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case string:
			params[k] = val
		case float64:
			params[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			params[k] = strconv.FormatBool(val)
		case nil:
			params[k] = ""
		default:
			raw, _ := json.Marshal(val)
			params[k] = string(raw)
		}
	}
	return params
}

// CreateRequest is the parameter set for a payment creation.
type CreateRequest struct {
	OrderRef  string
	Amount    float64
	Credits   int
	NotifyURL string
	ReturnURL string
}

// CreateResult is the gateway's answer to a creation request.
type CreateResult struct {
	Success bool
	PayURL  string
	TradeNo string
	Error   string
}

// CreatePayment asks the gateway for a redirect URL for the given order.
// Gateway failures come back in the result, not as an error.
func (c *Client) CreatePayment(ctx context.Context, req CreateRequest) CreateResult {
	params := map[string]string{
		"merchant_id":  c.config.MerchantID,
		"out_trade_no": req.OrderRef,
		"total_fee":    strconv.FormatFloat(req.Amount, 'f', -1, 64),
		"body":         fmt.Sprintf("充值%d积分", req.Credits),
		"notify_url":   req.NotifyURL,
		"return_url":   req.ReturnURL,
		"timestamp":    strconv.FormatInt(time.Now().Unix(), 10),
	}
	params["sign"] = Sign(params, c.config.SecretKey)

	body, err := json.Marshal(params)
	if err != nil {
		return CreateResult{Success: false, Error: fmt.Sprintf("failed to encode request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.config.APIURL, "/")+"/api/pay/create", bytes.NewReader(body))
	if err != nil {
		return CreateResult{Success: false, Error: fmt.Sprintf("failed to create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return CreateResult{Success: false, Error: fmt.Sprintf("gateway request failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return CreateResult{Success: false, Error: fmt.Sprintf("failed to read response: %v", err)}
	}

	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			PayURL  string `json:"pay_url"`
			TradeNo string `json:"trade_no"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return CreateResult{Success: false, Error: fmt.Sprintf("failed to parse response: %v", err)}
	}

	if result.Code != 200 {
		msg := result.Message
		if msg == "" {
			msg = fmt.Sprintf("gateway returned code %d", result.Code)
		}
		return CreateResult{Success: false, Error: msg}
	}
	return CreateResult{Success: true, PayURL: result.Data.PayURL, TradeNo: result.Data.TradeNo}
}

// SettledStatus reports whether a trade_status value denotes settlement.
func SettledStatus(tradeStatus string) bool {
	return tradeStatus == "TRADE_SUCCESS" || tradeStatus == "TRADE_FINISHED"
}
