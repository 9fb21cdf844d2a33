package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/anthonynsimon/bild/transform"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

type ONNXOptions struct {
	ModelPath     string
	LibraryPath   string
	InputSize     int
	NumClasses    int
	ConfThreshold float64
}

// ONNXDetector runs a YOLO-style slider model in-process. The session owns
// fixed input/output tensors, so runs are serialized.
type ONNXDetector struct {
	opts         ONNXOptions
	layout       yoloLayout
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	logger       *zap.Logger
	mu           sync.Mutex
}

func NewONNXDetector(opts ONNXOptions, logger *zap.Logger) (*ONNXDetector, error) {
	if opts.InputSize <= 0 {
		opts.InputSize = 640
	}
	if opts.NumClasses <= 0 {
		opts.NumClasses = 1
	}

	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file: %v", ErrDetectorUnavailable, err)
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected one input and one output, got %d and %d", len(inputs), len(outputs))
	}

	outputDims := append([]int64(nil), outputs[0].Dimensions...)
	for i, d := range outputDims {
		if d > 0 {
			continue
		}
		switch i {
		case 0:
			outputDims[i] = 1
		case 1:
			outputDims[i] = int64(4 + opts.NumClasses)
		default:
			outputDims[i] = int64(anchorCount(opts.InputSize))
		}
	}

	layout, err := newYOLOLayout(outputDims, opts.NumClasses)
	if err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(opts.InputSize), int64(opts.InputSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputDims...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.Info("ONNX detector loaded",
		zap.String("model", opts.ModelPath),
		zap.Int("input_size", opts.InputSize),
		zap.Int64s("output_shape", outputDims),
	)

	return &ONNXDetector{
		opts:         opts,
		layout:       layout,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		logger:       logger,
	}, nil
}

func (d *ONNXDetector) Identify(ctx context.Context, img image.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	bounds := img.Bounds()
	input := preprocess(img, d.opts.InputSize)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	copy(d.inputTensor.GetData(), input)
	if err := d.session.Run(); err != nil {
		return Result{}, fmt.Errorf("%w: inference failed: %v", ErrDetectorFailed, err)
	}

	best, ok := d.layout.best(d.outputTensor.GetData(), d.opts.ConfThreshold)
	if !ok {
		return Result{}, ErrNoDetection
	}

	return Result{
		Box:        scaleBox(best, d.opts.InputSize, bounds.Dx(), bounds.Dy()),
		Confidence: best.score,
	}, nil
}

func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
	return ort.DestroyEnvironment()
}

// preprocess resizes img to size x size and lays it out as normalized CHW
// float32 RGB.
func preprocess(img image.Image, size int) []float32 {
	resized := transform.Resize(img, size, size, transform.Linear)

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := resized.PixOffset(x, y)
			p := y*size + x
			data[p] = float32(resized.Pix[i]) / 255.0
			data[plane+p] = float32(resized.Pix[i+1]) / 255.0
			data[2*plane+p] = float32(resized.Pix[i+2]) / 255.0
		}
	}

	return data
}
