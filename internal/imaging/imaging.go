package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"

	"github.com/nfnt/resize"
)

// Model input geometry: one 224x224 RGB frame per request.
const (
	TargetSize = 224
	Channels   = 3
)

// InputLength is the flattened element count of a preprocessed tensor.
const InputLength = TargetSize * TargetSize * Channels

// ErrEmptyImage reports an upload with no bytes in the image field.
var ErrEmptyImage = errors.New("image payload is empty")

// DecodeJPEG decodes an uploaded buffer strictly as JPEG. Other formats,
// truncated streams, and empty buffers all fail.
func DecodeJPEG(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Preprocess converts a decoded image into the flat float32 tensor the model
// expects: nearest-neighbor resize to 224x224, row-major HWC layout, channel
// values cast to float32 in their native 0-255 range. The upstream model was
// trained without input scaling, so none is applied here.
func Preprocess(img image.Image) []float32 {
	resized := resize.Resize(TargetSize, TargetSize, img, resize.NearestNeighbor)

	data := make([]float32, 0, InputLength)
	bounds := resized.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data = append(data, float32(r>>8), float32(g>>8), float32(b>>8))
		}
	}
	return data
}
