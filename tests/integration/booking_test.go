package integration

import (
	"net/http"
	"testing"

	"cinebook/internal/models"
)

// TestBooking_ReserveAndConfirm walks the happy path: reserve seats, record
// a payment, confirm, and verify the booking lands in the user's history.
func TestBooking_ReserveAndConfirm(t *testing.T) {
	client := NewDefaultClient(t)
	showtimeID := EnsureShowtime(t, client)

	LogTestStep(t, "Reserving two seats for showtime %s", showtimeID)
	seats := UniqueSeats(2)
	resv := client.ReserveSeats(t, showtimeID, seats)
	if resv.BookingID == "" || resv.LockID == "" {
		t.Fatalf("Reservation missing identifiers: %+v", resv)
	}
	LogTestResult(t, "Booking %s created with lock %s", resv.BookingID, resv.LockID)

	AssertBookingStatus(t, client, resv.BookingID, models.StatusPendingPayment)

	LogTestStep(t, "Confirming booking %s", resv.BookingID)
	txnID := UniqueTransactionID()
	booking := client.ConfirmBooking(t, resv.BookingID, txnID)
	if booking.Status != models.StatusConfirmed {
		t.Fatalf("Expected confirmed booking, got %s", booking.Status)
	}
	LogTestResult(t, "Booking %s confirmed", resv.BookingID)

	bookings := client.ListBookings(t)
	AssertBookingExists(t, bookings, resv.BookingID)
	LogTestResult(t, "Booking %s present in user's history", resv.BookingID)
}

// TestBooking_SeatConflict verifies that a second reservation for held seats
// is rejected whole, even when only one of its seats overlaps.
func TestBooking_SeatConflict(t *testing.T) {
	client := NewDefaultClient(t)
	showtimeID := EnsureShowtime(t, client)

	seats := UniqueSeats(2)
	client.ReserveSeats(t, showtimeID, seats)
	LogTestResult(t, "First reservation holds %v", seats)

	// One overlapping seat plus one free seat: the whole request fails.
	overlap := []string{seats[0], UniqueSeats(1)[0]}
	status := client.TryReserveSeats(t, showtimeID, overlap)
	if status != http.StatusConflict {
		t.Fatalf("Expected 409 for overlapping reservation, got %d", status)
	}
	LogTestResult(t, "Overlapping reservation rejected with 409")

	// The free seat must not have been claimed by the failed request.
	status = client.TryReserveSeats(t, showtimeID, []string{overlap[1]})
	if status != http.StatusCreated {
		t.Fatalf("Expected free seat to remain reservable, got %d", status)
	}
	LogTestResult(t, "Non-overlapping seat stayed free after the failed attempt")
}

// TestBooking_CancelReleasesSeats verifies cancellation frees the held seats.
func TestBooking_CancelReleasesSeats(t *testing.T) {
	client := NewDefaultClient(t)
	showtimeID := EnsureShowtime(t, client)

	seats := UniqueSeats(1)
	resv := client.ReserveSeats(t, showtimeID, seats)

	LogTestStep(t, "Cancelling booking %s", resv.BookingID)
	booking := client.CancelBooking(t, resv.BookingID, "changed my mind")
	if booking.Status != models.StatusCancelled {
		t.Fatalf("Expected cancelled booking, got %s", booking.Status)
	}

	status := client.TryReserveSeats(t, showtimeID, seats)
	if status != http.StatusCreated {
		t.Fatalf("Expected seats to be free after cancellation, got %d", status)
	}
	LogTestResult(t, "Seats reservable again after cancellation")
}

// TestBooking_LockLifecycle exercises get, extend, and idempotent release.
func TestBooking_LockLifecycle(t *testing.T) {
	client := NewDefaultClient(t)
	showtimeID := EnsureShowtime(t, client)

	resv := client.ReserveSeats(t, showtimeID, UniqueSeats(1))

	lock := client.GetLock(t, resv.LockID)
	if lock.Released {
		t.Fatal("Fresh lock reported as released")
	}

	extended := client.ExtendLock(t, resv.LockID)
	if !extended.ExpiresAt.After(lock.ExpiresAt) && !extended.ExpiresAt.Equal(lock.ExpiresAt) {
		t.Fatalf("Extend moved expiry backwards: %s -> %s", lock.ExpiresAt, extended.ExpiresAt)
	}
	LogTestResult(t, "Lock extended to %s", extended.ExpiresAt)

	if released := client.ReleaseLock(t, resv.LockID); !released {
		t.Fatal("Expected first release to report released=true")
	}
	if released := client.ReleaseLock(t, resv.LockID); released {
		t.Fatal("Expected second release to report released=false")
	}
	LogTestResult(t, "Release is idempotent")
}

// TestBooking_ConcurrentReservation races two clients for the same seat and
// requires exactly one winner.
func TestBooking_ConcurrentReservation(t *testing.T) {
	base := APIBaseURL(t)
	client1 := NewTestClient(base, TestUsername, TestPassword)
	client2 := NewTestClient(base, "jane.smith@example.com", "password456")
	showtimeID := EnsureShowtime(t, client1)

	seats := UniqueSeats(1)
	results := make(chan int, 2)

	for _, c := range []*TestClient{client1, client2} {
		go func(c *TestClient) {
			results <- c.TryReserveSeats(t, showtimeID, seats)
		}(c)
	}

	codes := []int{<-results, <-results}
	created, conflicted := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Fatalf("Unexpected status from concurrent reservation: %d", code)
		}
	}

	if created != 1 || conflicted != 1 {
		t.Fatalf("Expected exactly one winner, got statuses %v", codes)
	}
	LogTestResult(t, "Exactly one of two concurrent reservations succeeded")
}

// TestBooking_ConfirmVersusReserveRace races a confirmation of a pending
// booking against a fresh reservation for the same seat. Whatever the
// interleaving, the seat must end up with exactly one holder: a confirmation
// that lands must mean the rival reservation was rejected, and vice versa.
func TestBooking_ConfirmVersusReserveRace(t *testing.T) {
	base := APIBaseURL(t)
	owner := NewTestClient(base, TestUsername, TestPassword)
	rival := NewTestClient(base, "jane.smith@example.com", "password456")
	showtimeID := EnsureShowtime(t, owner)

	const rounds = 20
	for i := 0; i < rounds; i++ {
		seats := UniqueSeats(1)
		resv := owner.ReserveSeats(t, showtimeID, seats)
		txnID := UniqueTransactionID()

		confirmCh := make(chan int, 1)
		reserveCh := make(chan int, 1)
		go func() {
			confirmCh <- owner.TryConfirmBooking(t, resv.BookingID, txnID)
		}()
		go func() {
			reserveCh <- rival.TryReserveSeats(t, showtimeID, seats)
		}()
		confirmStatus, reserveStatus := <-confirmCh, <-reserveCh

		if confirmStatus == http.StatusOK && reserveStatus == http.StatusCreated {
			t.Fatalf("Seat %s double-held: confirmation and rival reservation both succeeded", seats[0])
		}
		if confirmStatus != http.StatusOK {
			t.Fatalf("Confirmation of an active pending booking failed with %d", confirmStatus)
		}
		if reserveStatus != http.StatusConflict {
			t.Fatalf("Expected rival reservation to conflict, got %d", reserveStatus)
		}
	}
	LogTestResult(t, "Seat never double-held across %d confirm/reserve races", rounds)
}

// TestBooking_OwnershipIsolation verifies users cannot read each other's
// bookings.
func TestBooking_OwnershipIsolation(t *testing.T) {
	base := APIBaseURL(t)
	owner := NewTestClient(base, TestUsername, TestPassword)
	other := NewTestClient(base, "jane.smith@example.com", "password456")
	showtimeID := EnsureShowtime(t, owner)

	resv := owner.ReserveSeats(t, showtimeID, UniqueSeats(1))

	resp := other.makeRequest(t, "GET", "/api/bookings/"+resv.BookingID, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 for foreign booking, got %d", resp.StatusCode)
	}
	LogTestResult(t, "Foreign booking is invisible to other users")
}
