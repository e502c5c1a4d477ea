package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/asclepius/internal/logging"
)

func newTestRepository(t *testing.T) *PredictionRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	repo := NewPredictionRepository(db, zap.NewNop())
	if err := repo.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return repo
}

func TestSaveAndListAll(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	records := []*PredictionRecord{
		{ID: "id-1", Result: "Cancer", Suggestion: "Segera periksa ke dokter!", CreatedAt: time.Now().UTC()},
		{ID: "id-2", Result: "Non-cancer", Suggestion: "Penyakit kanker tidak terdeteksi.", CreatedAt: time.Now().UTC()},
	}
	for _, record := range records {
		if err := repo.Save(ctx, record); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	listed, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 records, got %d", len(listed))
	}

	ids := map[string]bool{}
	for _, record := range listed {
		ids[record.ID] = true
	}
	if !ids["id-1"] || !ids["id-2"] {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestSaveIsIdempotentUnderSameID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	record := &PredictionRecord{ID: "dup", Result: "Cancer", Suggestion: "Segera periksa ke dokter!", CreatedAt: time.Now().UTC()}
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	record.Result = "Non-cancer"
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	listed, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 record after overwrite, got %d", len(listed))
	}
	if listed[0].Result != "Non-cancer" {
		t.Fatalf("expected overwrite semantics, got result %s", listed[0].Result)
	}
}

func TestListAllEmptyStore(t *testing.T) {
	repo := newTestRepository(t)

	listed, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no records, got %d", len(listed))
	}
}

func TestAggregateMetrics(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i, result := range []string{"Cancer", "Cancer", "Non-cancer"} {
		record := &PredictionRecord{ID: fmt.Sprintf("id-%d", i), Result: result, CreatedAt: time.Now().UTC()}
		if err := repo.Save(ctx, record); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	agg, err := repo.AggregateMetrics(ctx)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if agg.TotalCount != 3 {
		t.Fatalf("expected 3 total, got %d", agg.TotalCount)
	}
	if agg.CancerCount != 2 {
		t.Fatalf("expected 2 cancer records, got %d", agg.CancerCount)
	}
}

type transientTestError struct{}

func (transientTestError) Error() string   { return "transient" }
func (transientTestError) Timeout() bool   { return true }
func (transientTestError) Temporary() bool { return true }

func TestExecuteWithRetryRetriesTransientErrors(t *testing.T) {
	repo := &PredictionRepository{
		logger:         zap.NewNop(),
		retryAttempts:  3,
		initialBackoff: time.Millisecond,
		maxBackoff:     2 * time.Millisecond,
	}

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "req-1", func() error {
		attempts++
		if attempts < 2 {
			return transientTestError{}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteWithRetryReturnsOperationError(t *testing.T) {
	repo := &PredictionRepository{
		logger:         zap.NewNop(),
		retryAttempts:  2,
		initialBackoff: time.Millisecond,
		maxBackoff:     2 * time.Millisecond,
	}

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "req-2", func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "test.operation" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
	if opErr.RequestID != "req-2" {
		t.Fatalf("unexpected request id: %s", opErr.RequestID)
	}
}
