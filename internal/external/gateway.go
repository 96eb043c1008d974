package external

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// GatewayClient talks to the external payment gateway. Every request carries
// a token signed over the sorted request parameters plus the merchant secret.
type GatewayClient struct {
	baseURL         string
	merchantID      string
	secret          string
	notificationURL string
	httpClient      *http.Client
}

type GatewayConfig struct {
	BaseURL         string
	MerchantID      string
	Secret          string
	NotificationURL string
	Timeout         time.Duration
}

type PaymentInitRequest struct {
	MerchantID      string `json:"merchantId"`
	Token           string `json:"token"`
	Amount          int64  `json:"amount"`
	OrderID         string `json:"orderId"`
	Currency        string `json:"currency"`
	Description     string `json:"description,omitempty"`
	NotificationURL string `json:"notificationURL,omitempty"`
}

type PaymentInitResponse struct {
	Success    bool   `json:"success"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	PaymentURL string `json:"paymentURL"`
	ExpiresAt  string `json:"expiresAt"`
	CreatedAt  string `json:"createdAt"`
}

func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &GatewayClient{
		baseURL:         cfg.BaseURL,
		merchantID:      cfg.MerchantID,
		secret:          cfg.Secret,
		notificationURL: cfg.NotificationURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (gc *GatewayClient) generateToken(params map[string]string) string {
	params["MerchantId"] = gc.merchantID
	params["Secret"] = gc.secret

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tokenString string
	for _, key := range keys {
		tokenString += params[key]
	}

	hash := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(hash[:])
}

// InitPayment opens a gateway payment for the given order. amount is in the
// smallest currency unit.
func (gc *GatewayClient) InitPayment(amount int64, orderID, currency, description string) (*PaymentInitResponse, error) {
	params := map[string]string{
		"Amount":   strconv.FormatInt(amount, 10),
		"Currency": currency,
		"OrderId":  orderID,
	}
	token := gc.generateToken(params)

	req := PaymentInitRequest{
		MerchantID:      gc.merchantID,
		Token:           token,
		Amount:          amount,
		OrderID:         orderID,
		Currency:        currency,
		Description:     description,
		NotificationURL: gc.notificationURL,
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := gc.httpClient.Post(gc.baseURL+"/api/v1/PaymentInit/init", "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to init payment: %w", err)
	}
	defer resp.Body.Close()

	var result PaymentInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("payment init failed")
	}

	return &result, nil
}

// RefundPayment asks the gateway to return funds for a completed payment.
func (gc *GatewayClient) RefundPayment(paymentID string, amount int64) error {
	params := map[string]string{
		"Amount":    strconv.FormatInt(amount, 10),
		"PaymentId": paymentID,
	}
	token := gc.generateToken(params)

	reqData := map[string]interface{}{
		"merchantId": gc.merchantID,
		"token":      token,
		"paymentId":  paymentID,
		"amount":     amount,
	}

	return gc.post("/api/v1/PaymentRefund/refund", reqData)
}

// CancelPayment voids a payment that has not completed.
func (gc *GatewayClient) CancelPayment(paymentID string, reason string) error {
	params := map[string]string{
		"PaymentId": paymentID,
	}
	token := gc.generateToken(params)

	reqData := map[string]interface{}{
		"merchantId": gc.merchantID,
		"token":      token,
		"paymentId":  paymentID,
		"reason":     reason,
	}

	return gc.post("/api/v1/PaymentCancel/cancel", reqData)
}

func (gc *GatewayClient) post(path string, reqData map[string]interface{}) error {
	jsonBody, err := json.Marshal(reqData)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := gc.httpClient.Post(gc.baseURL+path, "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
