package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"cinebook/internal/models"
)

// TestClient provides methods for testing the API
type TestClient struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client
}

// NewTestClient creates a new test client authenticated as the given user
func NewTestClient(baseURL, username, password string) *TestClient {
	return &TestClient{
		BaseURL:  baseURL,
		Username: username,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest makes an HTTP request and returns the response
func (c *TestClient) makeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// decodeOrFail asserts the status code and decodes the response body
func decodeOrFail(t *testing.T, resp *http.Response, wantStatus int, out interface{}) {
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d, got %d. Body: %s", wantStatus, resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
}

// ReserveSeats creates a reservation (booking + seat lock)
func (c *TestClient) ReserveSeats(t *testing.T, showtimeID string, seats []string) *models.ReserveSeatsResponse {
	req := models.ReserveSeatsRequest{
		ShowtimeID: showtimeID,
		Seats:      seats,
	}

	resp := c.makeRequest(t, "POST", "/api/reservations", req)

	var out models.ReserveSeatsResponse
	decodeOrFail(t, resp, http.StatusCreated, &out)
	return &out
}

// TryReserveSeats attempts a reservation and returns the status code
func (c *TestClient) TryReserveSeats(t *testing.T, showtimeID string, seats []string) int {
	req := models.ReserveSeatsRequest{
		ShowtimeID: showtimeID,
		Seats:      seats,
	}

	resp := c.makeRequest(t, "POST", "/api/reservations", req)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

// GetBooking fetches a single booking
func (c *TestClient) GetBooking(t *testing.T, bookingID string) *models.Booking {
	resp := c.makeRequest(t, "GET", "/api/bookings/"+bookingID, nil)

	var out models.Booking
	decodeOrFail(t, resp, http.StatusOK, &out)
	return &out
}

// ListBookings lists the authenticated user's bookings
func (c *TestClient) ListBookings(t *testing.T) models.ListBookingsResponse {
	resp := c.makeRequest(t, "GET", "/api/bookings", nil)

	var out models.ListBookingsResponse
	decodeOrFail(t, resp, http.StatusOK, &out)
	return out
}

// ConfirmBooking confirms a pending booking with a payment transaction
func (c *TestClient) ConfirmBooking(t *testing.T, bookingID, transactionID string) *models.Booking {
	req := models.ConfirmBookingRequest{
		BookingID:     bookingID,
		TransactionID: transactionID,
	}

	resp := c.makeRequest(t, "PATCH", "/api/bookings/confirm", req)

	var out models.Booking
	decodeOrFail(t, resp, http.StatusOK, &out)
	return &out
}

// TryConfirmBooking attempts a confirmation and returns the status code
func (c *TestClient) TryConfirmBooking(t *testing.T, bookingID, transactionID string) int {
	req := models.ConfirmBookingRequest{
		BookingID:     bookingID,
		TransactionID: transactionID,
	}

	resp := c.makeRequest(t, "PATCH", "/api/bookings/confirm", req)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

// CancelBooking cancels a booking
func (c *TestClient) CancelBooking(t *testing.T, bookingID, reason string) *models.Booking {
	req := models.CancelBookingRequest{
		BookingID: bookingID,
		Reason:    reason,
	}

	resp := c.makeRequest(t, "PATCH", "/api/bookings/cancel", req)

	var out models.Booking
	decodeOrFail(t, resp, http.StatusOK, &out)
	return &out
}

// GetLock fetches the state of a seat lock
func (c *TestClient) GetLock(t *testing.T, lockID string) *models.LockResponse {
	resp := c.makeRequest(t, "GET", "/api/locks/"+lockID, nil)

	var out models.LockResponse
	decodeOrFail(t, resp, http.StatusOK, &out)
	return &out
}

// ExtendLock pushes a lock's expiry further out
func (c *TestClient) ExtendLock(t *testing.T, lockID string) *models.LockResponse {
	req := models.ExtendLockRequest{LockID: lockID}

	resp := c.makeRequest(t, "PATCH", "/api/locks/extend", req)

	var out models.LockResponse
	decodeOrFail(t, resp, http.StatusOK, &out)
	return &out
}

// ReleaseLock releases a seat lock, returning whether it was still active
func (c *TestClient) ReleaseLock(t *testing.T, lockID string) bool {
	req := models.ReleaseLockRequest{LockID: lockID}

	resp := c.makeRequest(t, "PATCH", "/api/locks/release", req)

	var out struct {
		Released bool `json:"released"`
	}
	decodeOrFail(t, resp, http.StatusOK, &out)
	return out.Released
}

// RecordPaymentAttempt opens a pending ledger entry
func (c *TestClient) RecordPaymentAttempt(t *testing.T, transactionID, bookingID string, amount float64) *models.TransactionLog {
	req := models.RecordAttemptRequest{
		TransactionID: transactionID,
		BookingID:     bookingID,
		Amount:        amount,
		PaymentMethod: models.MethodCreditCard,
	}

	resp := c.makeRequest(t, "POST", "/api/payments/attempts", req)

	var out models.TransactionLog
	decodeOrFail(t, resp, http.StatusCreated, &out)
	return &out
}

// SendPaymentResult delivers a gateway webhook for a recorded attempt
func (c *TestClient) SendPaymentResult(t *testing.T, transactionID string, status models.TransactionStatus) {
	req := models.PaymentResultRequest{
		TransactionID: transactionID,
		Status:        status,
	}

	resp := c.makeRequest(t, "POST", "/api/payments/notifications", req)
	decodeOrFail(t, resp, http.StatusOK, nil)
}

// ListTransactions lists the ledger entries for a booking
func (c *TestClient) ListTransactions(t *testing.T, bookingID string) []models.TransactionLog {
	path := fmt.Sprintf("/api/bookings/%s/transactions", bookingID)
	resp := c.makeRequest(t, "GET", path, nil)

	var out []models.TransactionLog
	decodeOrFail(t, resp, http.StatusOK, &out)
	return out
}

// CreateShowtime indexes a showtime into the catalog
func (c *TestClient) CreateShowtime(t *testing.T, req models.CreateShowtimeRequest) string {
	resp := c.makeRequest(t, "POST", "/api/showtimes", req)

	var out models.CreateShowtimeResponse
	decodeOrFail(t, resp, http.StatusCreated, &out)
	return out.ID
}

// HealthCheck checks if the API is healthy
func (c *TestClient) HealthCheck(t *testing.T) {
	resp := c.makeRequest(t, "GET", "/health", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Health check failed with status %d", resp.StatusCode)
	}
}
