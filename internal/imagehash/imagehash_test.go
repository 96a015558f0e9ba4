package imagehash

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"wingmate/internal/models"
)

// encodePNG renders a generated image to PNG bytes
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// gradient draws a horizontal luminance ramp
func gradient(size int, inverted bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(x * 255 / (size - 1))
			if inverted {
				v = 255 - v
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// TestFingerprintDeterminism ensures identical bytes hash identically
func TestFingerprintDeterminism(t *testing.T) {
	data := encodePNG(t, gradient(64, false))

	h1, err := Fingerprint(data)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	h2, err := Fingerprint(data)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	if h1 != h2 {
		t.Errorf("Repeated fingerprints differ: %s vs %s", h1, h2)
	}
	if sim := Similarity(h1, h2); sim != 100 {
		t.Errorf("Self-similarity should be 100, got %.2f", sim)
	}
}

// TestSimilarityThreshold checks that visually similar images score above
// the 85%% acceptance threshold and unrelated ones score below it
func TestSimilarityThreshold(t *testing.T) {
	base, err := Fingerprint(encodePNG(t, gradient(64, false)))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	// Same content at a different resolution: compression/scale tolerant.
	rescaled, err := Fingerprint(encodePNG(t, gradient(96, false)))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if sim := Similarity(base, rescaled); sim < 85 {
		t.Errorf("Rescaled image similarity = %.2f, want >= 85", sim)
	}

	// Inverted content: most bits flip.
	inverted, err := Fingerprint(encodePNG(t, gradient(64, true)))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if sim := Similarity(base, inverted); sim >= 85 {
		t.Errorf("Unrelated image similarity = %.2f, want < 85", sim)
	}
}

// TestSimilaritySymmetry verifies Similarity(a,b) == Similarity(b,a)
func TestSimilaritySymmetry(t *testing.T) {
	a, _ := Fingerprint(encodePNG(t, gradient(64, false)))
	b, _ := Fingerprint(encodePNG(t, gradient(64, true)))

	if Similarity(a, b) != Similarity(b, a) {
		t.Errorf("Similarity is not symmetric: %.2f vs %.2f", Similarity(a, b), Similarity(b, a))
	}
}

// TestFingerprintDecodeError ensures garbage bytes surface ErrDecode
func TestFingerprintDecodeError(t *testing.T) {
	_, err := Fingerprint([]byte("definitely not an image"))
	if err == nil {
		t.Fatal("Expected decode error for garbage bytes")
	}
	if !errors.Is(err, models.ErrDecode) {
		t.Errorf("Expected models.ErrDecode, got: %v", err)
	}
}

// TestParseRoundTrip checks hex encode/decode stability
func TestParseRoundTrip(t *testing.T) {
	h, err := Fingerprint(encodePNG(t, gradient(64, false)))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	parsed, err := Parse(h.String())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed != h {
		t.Errorf("Round trip mismatch: %s vs %s", parsed, h)
	}

	if _, err := Parse("zzzz"); err == nil {
		t.Error("Expected error for invalid hex")
	}
	if _, err := Parse("abcd"); err == nil {
		t.Error("Expected error for truncated fingerprint")
	}
}
