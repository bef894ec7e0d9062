package imaging

import "fmt"

// Tensor is a single HWC float image.
type Tensor struct {
	Width    int
	Height   int
	Channels int
	Data     []float32
}

// NewTensor allocates a zeroed tensor.
func NewTensor(width, height, channels int) Tensor {
	return Tensor{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     make([]float32, width*height*channels),
	}
}

// Validate checks the tensor against the expected shape.
func (t Tensor) Validate(width, height, channels int) error {
	if t.Width != width || t.Height != height || t.Channels != channels {
		return fmt.Errorf("tensor shape %dx%dx%d, want %dx%dx%d",
			t.Height, t.Width, t.Channels, height, width, channels)
	}
	if len(t.Data) != width*height*channels {
		return fmt.Errorf("tensor holds %d values, want %d", len(t.Data), width*height*channels)
	}
	return nil
}

// At returns the value at row y, column x, channel c.
func (t Tensor) At(x, y, c int) float32 {
	return t.Data[(y*t.Width+x)*t.Channels+c]
}
