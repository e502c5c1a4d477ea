package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/example/asclepius/internal/imaging"
)

const (
	inputName  = "input"
	outputName = "output"
)

// ONNXEngine runs the classifier graph through onnxruntime. The session is
// created once at startup and never mutated, so concurrent Infer calls only
// need per-call tensors.
type ONNXEngine struct {
	session *ort.DynamicAdvancedSession
	logger  *zap.Logger
}

// LoadONNX initializes the onnxruntime environment and loads the model,
// preferring a remote modelURL when configured and falling back to modelPath
// on disk. Load happens exactly once per process.
func LoadONNX(ctx context.Context, modelPath, modelURL string, logger *zap.Logger) (*ONNXEngine, error) {
	if libPath := os.Getenv("ONNXRUNTIME_LIB_PATH"); libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	var (
		session *ort.DynamicAdvancedSession
		err     error
	)
	if modelURL != "" {
		var modelBytes []byte
		modelBytes, err = fetchModel(ctx, modelURL)
		if err != nil {
			return nil, err
		}
		session, err = ort.NewDynamicAdvancedSessionWithONNXData(
			modelBytes,
			[]string{inputName},
			[]string{outputName},
			nil,
		)
	} else {
		session, err = ort.NewDynamicAdvancedSession(
			modelPath,
			[]string{inputName},
			[]string{outputName},
			nil,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.Info("model loaded successfully",
		zap.String("model_path", modelPath),
		zap.String("model_url", modelURL))

	return &ONNXEngine{session: session, logger: logger.Named("engine")}, nil
}

// Infer runs one forward pass and returns a copy of the model's raw score
// vector. Input is a flat [1,224,224,3] tensor in HWC order.
func (e *ONNXEngine) Infer(ctx context.Context, input []float32) ([]float32, error) {
	if e == nil || e.session == nil {
		return nil, ErrModelNotLoaded
	}
	if len(input) != imaging.InputLength {
		return nil, fmt.Errorf("expected %d input values, got %d", imaging.InputLength, len(input))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(1, imaging.TargetSize, imaging.TargetSize, imaging.Channels)
	inputTensor, err := ort.NewTensor(inputShape, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// The output slot is left nil so onnxruntime allocates it with the
	// model-defined shape; score vector length is not assumed here.
	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	data := outputTensor.GetData()
	scores := make([]float32, len(data))
	copy(scores, data)
	return scores, nil
}

// Ready reports whether the model is loaded and inference can be served.
func (e *ONNXEngine) Ready() bool {
	return e != nil && e.session != nil
}

// Close releases the session and the onnxruntime environment.
func (e *ONNXEngine) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	ort.DestroyEnvironment() //nolint:errcheck
}

func fetchModel(ctx context.Context, modelURL string) ([]byte, error) {
	client := resty.New().SetTimeout(2 * time.Minute)
	resp, err := client.R().SetContext(ctx).Get(modelURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch model: status %s", resp.Status())
	}
	return resp.Body(), nil
}
