package style

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextMeasurer sizes label text with the Go Regular face. It is safe for
// concurrent use.
type TextMeasurer struct {
	mu     sync.Mutex
	face   font.Face
	height float64
}

// NewTextMeasurer creates a measurer for a font size in points at dpi
func NewTextMeasurer(size, dpi float64) (*TextMeasurer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     dpi,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("creating face: %w", err)
	}

	return &TextMeasurer{
		face:   face,
		height: toFloat(face.Metrics().Height),
	}, nil
}

// Measure returns the width and line height of text in pixels
func (m *TextMeasurer) Measure(text string) [2]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return [2]float64{toFloat(font.MeasureString(m.face, text)), m.height}
}

// Close releases the font face
func (m *TextMeasurer) Close() error {
	return m.face.Close()
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
