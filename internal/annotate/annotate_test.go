package annotate

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anime-shed/street-inspector-go/internal/classifier"
)

func grayImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 40, 40, 40, 255
	}
	return img
}

func TestCaption(t *testing.T) {
	tests := []struct {
		res  classifier.Result
		want string
	}{
		{classifier.Result{Label: classifier.Garbage, Confidence: 0.87}, "Garbage (0.87)"},
		{classifier.Result{Label: classifier.Clean, Confidence: 0.999}, "Clean (1.00)"},
		{classifier.Result{Label: classifier.Garbage, Confidence: 0.5}, "Garbage (0.50)"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Caption(tt.res))
	}
}

func TestDraw_DoesNotMutateInput(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	original := grayImage(320, 240)
	before := bytes.Clone(original.Pix)

	out, err := a.Draw(original, classifier.Result{Label: classifier.Garbage, Confidence: 0.87})
	require.NoError(t, err)

	require.Equal(t, before, original.Pix)
	require.Equal(t, original.Bounds(), out.Bounds())
	require.NotEqual(t, original.Pix, out.Pix)
}

func TestDraw_GreenTextNearOrigin(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	out, err := a.Draw(grayImage(320, 240), classifier.Result{Label: classifier.Clean, Confidence: 0.66})
	require.NoError(t, err)

	green := 0
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			c := out.RGBAAt(x, y)
			if c.G > 200 && c.R < 80 && c.B < 80 {
				green++
				// Glyphs sit on the baseline at y=30 and start at x=10.
				require.GreaterOrEqual(t, x, 8, "green pixel left of origin")
				require.Less(t, y, 40, "green pixel below the caption line")
			}
		}
	}
	require.Greater(t, green, 50)
}

func TestDraw_NonZeroOriginAndTinyImages(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	offset := image.NewNRGBA(image.Rect(100, 100, 400, 300))
	out, err := a.Draw(offset, classifier.Result{Label: classifier.Garbage, Confidence: 0.1})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 300, 200), out.Bounds())

	tiny := image.NewRGBA(image.Rect(0, 0, 4, 4))
	out, err = a.Draw(tiny, classifier.Result{Label: classifier.Garbage, Confidence: 0.1})
	require.NoError(t, err)
	require.Equal(t, tiny.Bounds(), out.Bounds())
	require.Equal(t, color.RGBA{0, 0, 0, 255}, out.RGBAAt(0, 0))
}
