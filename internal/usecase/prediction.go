package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/asclepius/internal/classifier"
	"github.com/example/asclepius/internal/engine"
	"github.com/example/asclepius/internal/imaging"
	"github.com/example/asclepius/internal/logging"
	"github.com/example/asclepius/internal/repository"
)

// PredictionStore defines the persistence operations needed by the use case.
type PredictionStore interface {
	Save(ctx context.Context, record *repository.PredictionRecord) error
	ListAll(ctx context.Context) ([]repository.PredictionRecord, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// PredictionUseCase drives the prediction pipeline: decode, preprocess,
// infer, classify, persist.
type PredictionUseCase struct {
	store          PredictionStore
	cache          Cache
	engine         engine.Engine
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	cacheTTL       time.Duration
}

// MetricsSummary represents aggregated prediction insights.
type MetricsSummary struct {
	TotalPredictions int64   `json:"total_predictions"`
	CancerDetections int64   `json:"cancer_detections"`
	CancerRate       float64 `json:"cancer_rate"`
}

// NewPredictionUseCase constructs a new use case instance.
func NewPredictionUseCase(store PredictionStore, cache Cache, eng engine.Engine, logger *zap.Logger) *PredictionUseCase {
	return &PredictionUseCase{
		store:          store,
		cache:          cache,
		engine:         eng,
		logger:         logger.Named("prediction_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
		cacheTTL:       5 * time.Minute,
	}
}

// Ready reports whether the inference engine has a loaded model.
func (uc *PredictionUseCase) Ready() bool {
	return uc.engine != nil && uc.engine.Ready()
}

// Predict runs one image through the full pipeline and persists the verdict.
// A record is written only after a label has been derived; no partial records
// ever reach the store.
func (uc *PredictionUseCase) Predict(ctx context.Context, imageBytes []byte) (*repository.PredictionRecord, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.predict", requestID)

	img, err := imaging.DecodeJPEG(imageBytes)
	if err != nil {
		wrapped := logging.NewOperationError("pipeline.decode", requestID, err)
		opLogger.Error("image decode failed", zap.Error(wrapped))
		return nil, wrapped
	}

	input := imaging.Preprocess(img)

	scores, err := uc.engine.Infer(ctx, input)
	if err != nil {
		wrapped := logging.NewOperationError("pipeline.infer", requestID, err)
		opLogger.Error("inference failed", zap.Error(wrapped))
		return nil, wrapped
	}

	verdict, err := classifier.Classify(scores)
	if err != nil {
		wrapped := logging.NewOperationError("pipeline.classify", requestID, err)
		opLogger.Error("classification failed", zap.Error(wrapped))
		return nil, wrapped
	}

	record := &repository.PredictionRecord{
		ID:         requestID,
		Result:     verdict.Result,
		Suggestion: verdict.Suggestion,
		CreatedAt:  time.Now().UTC(),
	}

	if err := uc.store.Save(ctx, record); err != nil {
		opLogger.Error("failed to persist prediction record", zap.Error(err))
		return nil, err
	}

	// Write-through cache of the fresh verdict. The store is the source of
	// truth, so a cache failure after persist does not fail the request.
	if serialized, err := json.Marshal(record); err != nil {
		opLogger.Warn("failed to serialize prediction record for cache", zap.Error(err))
	} else if err := uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey(requestID), string(serialized), uc.cacheTTL)
	}); err != nil {
		opLogger.Warn("failed to cache prediction record", zap.Error(err))
	}

	return record, nil
}

// Histories lists every persisted prediction record.
func (uc *PredictionUseCase) Histories(ctx context.Context) ([]repository.PredictionRecord, error) {
	records, err := uc.store.ListAll(ctx)
	if err != nil {
		uc.logger.Error("failed to list prediction histories", zap.Error(err))
		return nil, err
	}
	return records, nil
}

// MetricsSummary aggregates prediction metrics from persisted records.
func (uc *PredictionUseCase) MetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.store.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalPredictions: aggregation.TotalCount,
		CancerDetections: aggregation.CancerCount,
	}

	if aggregation.TotalCount > 0 {
		summary.CancerRate = float64(aggregation.CancerCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}

func cacheKey(requestID string) string {
	return fmt.Sprintf("prediction:%s", requestID)
}

func (uc *PredictionUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
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
