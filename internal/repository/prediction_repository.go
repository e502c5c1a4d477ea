package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/asclepius/internal/logging"
)

// PredictionRecord is the persisted unit of one completed prediction.
// Records are immutable after creation; the service never updates or deletes
// them.
type PredictionRecord struct {
	ID         string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	Result     string    `gorm:"column:result;size:32" json:"result"`
	Suggestion string    `gorm:"column:suggestion;type:text" json:"suggestion"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"createdAt"`
}

// TableName overrides the default table name.
func (PredictionRecord) TableName() string {
	return "predictions"
}

// MetricsAggregation holds aggregate counters over persisted predictions.
type MetricsAggregation struct {
	TotalCount  int64
	CancerCount int64
}

// PredictionRepository provides persistence APIs for prediction records.
type PredictionRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewPredictionRepository creates a new repository instance.
func NewPredictionRepository(db *gorm.DB, logger *zap.Logger) *PredictionRepository {
	return &PredictionRepository{
		db:             db,
		logger:         logger.Named("prediction_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *PredictionRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&PredictionRecord{})
}

// Save persists a prediction record. Writes are idempotent under the same id
// (overwrite semantics), though ids are freshly generated per request.
func (r *PredictionRepository) Save(ctx context.Context, record *PredictionRecord) error {
	return r.executeWithRetry(ctx, "store.save", record.ID, func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
			Create(record).Error
	})
}

// ListAll returns every persisted record. The full-collection scan matches
// the store's expected scale; there is no pagination.
func (r *PredictionRepository) ListAll(ctx context.Context) ([]PredictionRecord, error) {
	var records []PredictionRecord
	err := r.executeWithRetry(ctx, "store.list_all", "", func() error {
		return r.db.WithContext(ctx).Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AggregateMetrics computes summary counters over all persisted predictions.
func (r *PredictionRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "store.aggregate_metrics", "", func() error {
		if err := r.db.WithContext(ctx).Model(&PredictionRecord{}).Count(&agg.TotalCount).Error; err != nil {
			return err
		}
		return r.db.WithContext(ctx).Model(&PredictionRecord{}).
			Where("result = ?", "Cancer").
			Count(&agg.CancerCount).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *PredictionRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, requestID)

	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("store operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("store operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient store error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
