package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/events"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

var fixedNow = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type testDeps struct {
	repo      *fakeRepository
	cache     *cache.CacheManager
	publisher *events.MockEventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testDeps{
		repo:      newFakeRepository(),
		cache:     cache.NewCacheManager(nil),
		publisher: events.NewMockEventPublisher(logger),
		logger:    logger,
		validator: validator.New(),
	}
}

func intPtr(v int) *int              { return &v }
func strPtr(v string) *string        { return &v }
func uintPtr(v uint) *uint           { return &v }
func timePtr(v time.Time) *time.Time { return &v }
