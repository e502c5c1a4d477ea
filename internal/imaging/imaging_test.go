package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func encodeTestJPEG(t *testing.T, width, height int, fill color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeJPEGValid(t *testing.T) {
	data := encodeTestJPEG(t, 64, 48, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	img, err := DecodeJPEG(data)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Fatalf("unexpected dimensions: %v", img.Bounds())
	}
}

func TestDecodeJPEGEmpty(t *testing.T) {
	if _, err := DecodeJPEG(nil); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestDecodeJPEGInvalidBytes(t *testing.T) {
	if _, err := DecodeJPEG([]byte("definitely not a jpeg")); err == nil {
		t.Fatal("expected error for non-JPEG bytes")
	}
}

func TestDecodeJPEGTruncated(t *testing.T) {
	data := encodeTestJPEG(t, 64, 64, color.RGBA{R: 10, G: 200, B: 30, A: 255})
	if _, err := DecodeJPEG(data[:len(data)/2]); err == nil {
		t.Fatal("expected error for truncated JPEG")
	}
}

func TestPreprocessShapeAndRange(t *testing.T) {
	data := encodeTestJPEG(t, 500, 300, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	img, err := DecodeJPEG(data)
	if err != nil {
		t.Fatalf("failed to decode test image: %v", err)
	}

	input := Preprocess(img)
	if len(input) != InputLength {
		t.Fatalf("expected %d values, got %d", InputLength, len(input))
	}
	for i, v := range input {
		if v < 0 || v > 255 {
			t.Fatalf("value %d out of native 0-255 range: %f", i, v)
		}
	}
}

func TestPreprocessKeepsNativeRange(t *testing.T) {
	// A uniform white image must stay near 255 after preprocessing; any value
	// near 1.0 would mean a normalization snuck in.
	data := encodeTestJPEG(t, 32, 32, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img, err := DecodeJPEG(data)
	if err != nil {
		t.Fatalf("failed to decode test image: %v", err)
	}

	input := Preprocess(img)
	for i, v := range input {
		if v < 240 {
			t.Fatalf("value %d unexpectedly low (%f), input looks normalized", i, v)
		}
	}
}

func TestPreprocessIsDeterministic(t *testing.T) {
	data := encodeTestJPEG(t, 100, 80, color.RGBA{R: 33, G: 66, B: 99, A: 255})
	img, err := DecodeJPEG(data)
	if err != nil {
		t.Fatalf("failed to decode test image: %v", err)
	}

	first := Preprocess(img)
	second := Preprocess(img)
	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("value %d differs between runs: %f vs %f", i, first[i], second[i])
		}
	}
}
