package service_test

import (
	"testing"
	"time"

	"cinebook/internal/clock"
	"cinebook/internal/config"
	"cinebook/internal/service"
	"cinebook/internal/service/servicetest"
)

var baseTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

const (
	defaultTTL = 5 * time.Minute
	maxTTL     = 15 * time.Minute
)

type fixture struct {
	services *service.Services
	store    *servicetest.MemStore
	events   *servicetest.EventRecorder
	clock    *clock.Fake
	gateway  *servicetest.FakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := servicetest.NewMemStore()
	events := servicetest.NewEventRecorder()
	clk := clock.NewFake(baseTime)
	gateway := servicetest.NewFakeGateway()

	store.AddUser("user123", "john.doe@example.com")
	store.AddUser("user456", "jane.smith@example.com")
	store.AddShowtime("st-1", 10.00)
	store.AddShowtime("st-2", 12.50)

	services := service.New(service.Deps{
		Locks:     store.LockStore(),
		Bookings:  store.BookingStore(),
		Ledger:    store.LedgerStore(),
		Showtimes: store.ShowtimeCatalog(),
		Users:     store.UserDirectory(),
		Publisher: events,
		Gateway:   gateway,
		Clock:     clk,
		LockCfg: config.LockConfig{
			DefaultTTL: defaultTTL,
			MaxTTL:     maxTTL,
		},
	})

	return &fixture{
		services: services,
		store:    store,
		events:   events,
		clock:    clk,
		gateway:  gateway,
	}
}
