// Package imaging decodes uploads into pixel buffers, builds the classifier input tensor
// and re-encodes annotated buffers for transport.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	// Registered decoders for the accepted upload types.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	apperrors "github.com/anime-shed/street-inspector-go/internal/errors"
)

const (
	// InputSize is the square edge the classifier was trained on.
	InputSize = 224
	// InputChannels is the RGB channel count of the classifier input.
	InputChannels = 3

	jpegQuality = 90

	// DefaultMaxPixels bounds decoded buffers to roughly 100 MB of RGBA.
	DefaultMaxPixels int64 = 25_000_000
	// maxEdge rejects degenerate strips that pass the pixel budget.
	maxEdge = 20_000
)

// supportedTypes maps accepted MIME types to the format name image.Decode reports.
var supportedTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/jpg":  "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
}

// RawImage is an uploaded payload together with its declared MIME type.
type RawImage struct {
	Data     []byte
	MIMEType string
}

// IsSupportedType reports whether the MIME type is one the codec accepts.
func IsSupportedType(mimeType string) bool {
	_, ok := supportedTypes[normalizeMIME(mimeType)]
	return ok
}

// SupportedTypes lists the accepted MIME types.
func SupportedTypes() []string {
	return []string{"image/jpeg", "image/png", "image/gif"}
}

func normalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Codec implements decode, normalize and encode for the analysis pipeline.
type Codec struct {
	maxPixels int64
}

// NewCodec creates a codec with the default pixel budget.
func NewCodec() *Codec {
	return NewCodecWithLimit(DefaultMaxPixels)
}

// NewCodecWithLimit creates a codec that refuses images declaring more than maxPixels.
func NewCodecWithLimit(maxPixels int64) *Codec {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Codec{maxPixels: maxPixels}
}

// Decode reads raw bytes into an opaque RGBA buffer. Animated GIFs yield their first frame.
func (c *Codec) Decode(raw RawImage) (*image.RGBA, error) {
	if _, ok := supportedTypes[normalizeMIME(raw.MIMEType)]; !ok {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("unsupported image type %q", raw.MIMEType), nil)
	}
	if len(raw.Data) == 0 {
		return nil, apperrors.NewDecodeError("empty image payload", nil)
	}

	// Header dimensions are checked before any pixel buffer is allocated.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, apperrors.NewDecodeError("failed to decode image", err)
	}
	if cfg.Width > maxEdge || cfg.Height > maxEdge {
		return nil, apperrors.NewDecodeError(
			fmt.Sprintf("image dimensions %dx%d exceed %dx%d", cfg.Width, cfg.Height, maxEdge, maxEdge), nil)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > c.maxPixels {
		return nil, apperrors.NewDecodeError(
			fmt.Sprintf("image has %d pixels, limit is %d", pixels, c.maxPixels), nil)
	}

	img, _, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, apperrors.NewDecodeError("failed to decode image", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, apperrors.NewDecodeError("image has zero dimensions", nil)
	}
	return ToRGB(img), nil
}

// ToRGB copies img into a zero-origin RGBA buffer with every pixel made opaque,
// which converts grayscale, paletted and alpha sources to plain RGB.
func ToRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Normalize resizes to InputSize x InputSize with Catmull-Rom (bicubic) resampling and
// scales each channel to [0,1]. The HWC RGB layout, the bicubic filter and the v/255
// range match the trained model's preprocessing; nothing at runtime can verify that.
// Buffers from Decode are used as is; other images are flattened to opaque RGB first.
func (c *Codec) Normalize(img image.Image) Tensor {
	src, ok := img.(*image.RGBA)
	if !ok {
		src = ToRGB(img)
	}
	resized := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.CatmullRom.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Src, nil)

	t := NewTensor(InputSize, InputSize, InputChannels)
	for y := 0; y < InputSize; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < InputSize; x++ {
			px := row[x*4:]
			base := (y*InputSize + x) * InputChannels
			t.Data[base] = float32(px[0]) / 255
			t.Data[base+1] = float32(px[1]) / 255
			t.Data[base+2] = float32(px[2]) / 255
		}
	}
	return t
}

// Encode serializes a buffer as JPEG.
func (c *Codec) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, apperrors.NewEncodeError("nothing to encode", nil)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, apperrors.NewEncodeError("image has zero dimensions", nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, apperrors.NewEncodeError("failed to encode jpeg", err)
	}
	return buf.Bytes(), nil
}

// ToBase64 returns the standard base64 encoding used in response payloads.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
