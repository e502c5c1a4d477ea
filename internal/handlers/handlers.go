package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/asclepius/internal/repository"
	"github.com/example/asclepius/internal/usecase"
)

// MaxUploadSize is the default multipart payload ceiling in bytes.
const MaxUploadSize = 1000000

const (
	msgImageRequired    = "Image is required"
	msgPredictionFailed = "Terjadi kesalahan dalam melakukan prediksi"
	msgHistoriesFailed  = "Terjadi kesalahan saat mengambil data history"
	msgMetricsFailed    = "Terjadi kesalahan saat mengambil data metrik"
	msgPredictSuccess   = "Model is predicted successfully"
)

// PredictionService is the slice of use case behavior the HTTP layer needs.
type PredictionService interface {
	Predict(ctx context.Context, imageBytes []byte) (*repository.PredictionRecord, error)
	Histories(ctx context.Context) ([]repository.PredictionRecord, error)
	MetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
	Ready() bool
}

// Options carries the transport-level settings the routes depend on.
type Options struct {
	AllowedOrigin   string
	MaxPayloadBytes int64
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc PredictionService, opts Options) {
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = MaxUploadSize
	}

	router.Use(corsMiddleware(opts.AllowedOrigin))

	router.GET("/health", func(c *gin.Context) {
		if !svc.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/predict", payloadLimit(opts.MaxPayloadBytes), func(c *gin.Context) {
		file, err := c.FormFile("image")
		if err != nil {
			if isMaxBytesError(err) {
				abortPayloadTooLarge(c, opts.MaxPayloadBytes)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"status": "fail", "message": msgImageRequired})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "fail", "message": msgPredictionFailed})
			return
		}
		defer src.Close()

		imageBytes, err := io.ReadAll(src)
		if err != nil {
			if isMaxBytesError(err) {
				abortPayloadTooLarge(c, opts.MaxPayloadBytes)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"status": "fail", "message": msgPredictionFailed})
			return
		}

		record, err := svc.Predict(c.Request.Context(), imageBytes)
		if err != nil {
			// Stage detail stays server-side; the client message is the
			// same for every pipeline and store failure.
			c.JSON(http.StatusBadRequest, gin.H{"status": "fail", "message": msgPredictionFailed})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"status":  "success",
			"message": msgPredictSuccess,
			"data":    record,
		})
	})

	router.GET("/predict/histories", func(c *gin.Context) {
		records, err := svc.Histories(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgHistoriesFailed})
			return
		}

		data := make([]gin.H, 0, len(records))
		for _, record := range records {
			data = append(data, gin.H{"id": record.ID, "history": record})
		}

		c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
	})

	router.GET("/predict/metrics", func(c *gin.Context) {
		summary, err := svc.MetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgMetricsFailed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": summary})
	})
}

// corsMiddleware injects the fixed CORS headers on every response and
// answers preflight requests on any path with an empty body.
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// payloadLimit rejects oversized uploads before the multipart parser runs and
// bounds chunked bodies that carry no Content-Length.
func payloadLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			abortPayloadTooLarge(c, maxBytes)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func abortPayloadTooLarge(c *gin.Context, maxBytes int64) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
		"status":  "fail",
		"message": fmt.Sprintf("Payload content length greater than maximum allowed: %d", maxBytes),
	})
}

func isMaxBytesError(err error) bool {
	if err == nil {
		return false
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
