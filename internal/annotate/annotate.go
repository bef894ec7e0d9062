// Package annotate overlays the classification caption on a copy of the input image.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/anime-shed/street-inspector-go/internal/classifier"
	"github.com/anime-shed/street-inspector-go/internal/imaging"
)

const (
	DefaultFontSize    = 24
	DefaultStrokeWidth = 2
)

var (
	DefaultOrigin = image.Pt(10, 30)
	DefaultColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

// Annotator draws "{label} ({confidence})" at a fixed baseline origin.
type Annotator struct {
	font   *opentype.Font
	size   float64
	origin image.Point
	color  color.Color
	stroke int
}

// New parses the embedded Go Regular font.
func New() (*Annotator, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Annotator{
		font:   f,
		size:   DefaultFontSize,
		origin: DefaultOrigin,
		color:  DefaultColor,
		stroke: DefaultStrokeWidth,
	}, nil
}

// Caption formats a result the way it is drawn.
func Caption(res classifier.Result) string {
	return fmt.Sprintf("%s (%.2f)", res.Label, res.Confidence)
}

// Draw returns an annotated copy; original is never written to.
func (a *Annotator) Draw(original image.Image, res classifier.Result) (*image.RGBA, error) {
	dst := imaging.ToRGB(original)

	// Faces carry glyph caches and are not safe for concurrent use.
	face, err := opentype.NewFace(a.font, &opentype.FaceOptions{
		Size:    a.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	caption := Caption(res)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(a.color),
		Face: face,
	}

	// Thicken the glyphs by repeating them over a square of offsets as wide as the stroke.
	lo := -(a.stroke / 2)
	hi := lo + a.stroke - 1
	if a.stroke <= 1 {
		lo, hi = 0, 0
	}
	for dy := lo; dy <= hi; dy++ {
		for dx := lo; dx <= hi; dx++ {
			d.Dot = fixed.P(a.origin.X+dx, a.origin.Y+dy)
			d.DrawString(caption)
		}
	}
	return dst, nil
}
