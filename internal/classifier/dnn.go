//go:build gocv
// +build gocv

package classifier

import (
	"encoding/binary"
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"github.com/anime-shed/street-inspector-go/internal/imaging"
)

func init() {
	RegisterOpener(".onnx", OpenDNN)
	RegisterOpener(".pb", OpenDNN)
}

// DNNModel runs an exported network through OpenCV's dnn module.
type DNNModel struct {
	net gocv.Net
}

// OpenDNN reads an ONNX or frozen TensorFlow graph.
func OpenDNN(path string) (Model, error) {
	net := gocv.ReadNet(path, "")
	if net.Empty() {
		return nil, fmt.Errorf("gocv: cannot read network %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &DNNModel{net: net}, nil
}

// Predict feeds the tensor as a 1xHxWxC float blob, the layout Keras exports.
func (m *DNNModel) Predict(t imaging.Tensor) ([]float64, error) {
	if err := t.Validate(imaging.InputSize, imaging.InputSize, imaging.InputChannels); err != nil {
		return nil, err
	}

	blob, err := gocv.NewMatWithSizesFromBytes(
		[]int{1, t.Height, t.Width, t.Channels}, gocv.MatTypeCV32F, float32Bytes(t.Data))
	if err != nil {
		return nil, fmt.Errorf("gocv: build input blob: %w", err)
	}
	defer blob.Close()

	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	defer out.Close()
	if out.Empty() {
		return nil, fmt.Errorf("gocv: forward pass produced no output")
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("gocv: read output: %w", err)
	}
	probs := make([]float64, len(data))
	for i, v := range data {
		probs[i] = float64(v)
	}
	return probs, nil
}

func (m *DNNModel) Close() error {
	return m.net.Close()
}

func float32Bytes(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
