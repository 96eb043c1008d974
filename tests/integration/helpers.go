package integration

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"cinebook/internal/models"
)

const (
	// TestUsername is the seeded user used by most tests.
	TestUsername = "john.doe@example.com"
	// TestPassword matches the seeded password hash.
	TestPassword = "password123"
)

var seatCounter int64

// APIBaseURL returns the API under test, skipping when none is configured.
func APIBaseURL(t *testing.T) string {
	url := os.Getenv("API_BASE_URL")
	if url == "" {
		t.Skip("API_BASE_URL not set, skipping integration test")
	}
	return url
}

// NewDefaultClient builds a client for the seeded test user.
func NewDefaultClient(t *testing.T) *TestClient {
	return NewTestClient(APIBaseURL(t), TestUsername, TestPassword)
}

// UniqueSeats returns seat ids that no other test in this run has claimed,
// so tests can share one showtime without colliding.
func UniqueSeats(n int) []string {
	seats := make([]string, n)
	for i := range seats {
		seats[i] = fmt.Sprintf("T%d", atomic.AddInt64(&seatCounter, 1))
	}
	return seats
}

// UniqueTransactionID returns a transaction id unique to this test run.
func UniqueTransactionID() string {
	return fmt.Sprintf("txn-it-%d-%d", time.Now().UnixNano(), atomic.AddInt64(&seatCounter, 1))
}

// EnsureShowtime creates a showtime for the run and returns its id.
func EnsureShowtime(t *testing.T, client *TestClient) string {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	return client.CreateShowtime(t, models.CreateShowtimeRequest{
		MovieID:    "movie-it",
		MovieTitle: "Integration Feature",
		CinemaID:   "cinema-it",
		ScreenID:   "screen-1",
		StartTime:  start,
		EndTime:    start.Add(2 * time.Hour),
		BasePrice:  10.00,
	})
}

// AssertBookingExists checks if a booking exists in the list
func AssertBookingExists(t *testing.T, bookings models.ListBookingsResponse, bookingID string) {
	for _, booking := range bookings {
		if booking.ID == bookingID {
			return
		}
	}
	t.Fatalf("Booking with ID %s not found in bookings list", bookingID)
}

// AssertBookingStatus verifies a booking's status via the API
func AssertBookingStatus(t *testing.T, client *TestClient, bookingID string, want models.BookingStatus) {
	booking := client.GetBooking(t, bookingID)
	if booking.Status != want {
		t.Fatalf("Booking %s has status %s, expected %s", bookingID, booking.Status, want)
	}
}

// LogTestStep logs a test step for better debugging
func LogTestStep(t *testing.T, step string, args ...interface{}) {
	t.Logf("🔹 "+step, args...)
}

// LogTestResult logs a test result
func LogTestResult(t *testing.T, result string, args ...interface{}) {
	t.Logf("✅ "+result, args...)
}
