// Package imagehash computes compact perceptual fingerprints for face
// photos. The hash is a 256-bit average hash over a 16x16 grayscale
// downscale: identical visual content (modulo compression) lands on
// identical or near-identical hashes, unrelated images on hashes with high
// Hamming distance. This is deliberately NOT biometric face recognition.
package imagehash

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"wingmate/internal/models"
)

// GridSize is the side of the normalized grayscale grid.
const GridSize = 16

// Bits is the fingerprint length in bits.
const Bits = GridSize * GridSize

// Hash is a 256-bit perceptual fingerprint.
type Hash [Bits / 8]byte

// Fingerprint decodes imageBytes, normalizes to a 16x16 grayscale grid and
// computes the average hash. Undecodable data returns models.ErrDecode.
func Fingerprint(imageBytes []byte) (Hash, error) {
	var h Hash

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return h, fmt.Errorf("%w: %v", models.ErrDecode, err)
	}

	gray := normalize(img)

	// Mean luminance over the grid.
	var sum uint64
	for _, px := range gray {
		sum += uint64(px)
	}
	mean := uint8(sum / Bits)

	// One bit per cell: 1 if the cell is at or above the mean.
	for i, px := range gray {
		if px >= mean {
			h[i/8] |= 1 << uint(7-i%8)
		}
	}

	return h, nil
}

// normalize downscales img into a GridSize x GridSize grayscale buffer.
func normalize(img image.Image) [Bits]uint8 {
	dst := image.NewGray(image.Rect(0, 0, GridSize, GridSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var out [Bits]uint8
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			out[y*GridSize+x] = dst.GrayAt(x, y).Y
		}
	}
	return out
}

// Similarity returns 100 minus the normalized Hamming distance between the
// two hashes, as a percentage. Symmetric, and Similarity(h, h) == 100.
func Similarity(a, b Hash) float64 {
	distance := 0
	for i := range a {
		distance += bits.OnesCount8(a[i] ^ b[i])
	}
	return 100.0 - (float64(distance)/Bits)*100.0
}

// String renders the hash as lowercase hex, the form stored in faceData.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Parse reads a hex-encoded fingerprint back into a Hash.
func Parse(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid fingerprint encoding: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid fingerprint length: got %d bytes, want %d", len(raw), len(h))
	}
	copy(h[:], raw)
	return h, nil
}
