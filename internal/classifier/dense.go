package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/anime-shed/street-inspector-go/internal/imaging"
)

func init() {
	RegisterOpener(".json", OpenDense)
}

// DenseSpec is the on-disk form of a pooled fully connected head.
//
// The input tensor is average-pooled into Grid x Grid cells per channel
// (Grid 0 feeds every value), then passed through Layers in order.
type DenseSpec struct {
	Name   string      `json:"name"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Grid   int         `json:"grid"`
	Layers []LayerSpec `json:"layers"`
}

// LayerSpec holds one layer: Weights is out x in, Activation is relu, linear or softmax.
type LayerSpec struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

type denseLayer struct {
	weights    *mat.Dense
	bias       *mat.VecDense
	activation string
}

// DenseModel is a pure Go backend built on gonum.
type DenseModel struct {
	width, height, grid int
	layers              []denseLayer
}

// OpenDense reads a DenseSpec JSON file.
func OpenDense(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec DenseSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewDenseModel(spec)
}

// NewDenseModel validates layer shapes and builds the gonum matrices.
func NewDenseModel(spec DenseSpec) (*DenseModel, error) {
	m := &DenseModel{width: spec.Width, height: spec.Height, grid: spec.Grid}
	if m.width == 0 {
		m.width = imaging.InputSize
	}
	if m.height == 0 {
		m.height = imaging.InputSize
	}
	if m.grid < 0 || m.grid > m.width || m.grid > m.height {
		return nil, fmt.Errorf("grid %d does not fit a %dx%d input", m.grid, m.width, m.height)
	}
	if len(spec.Layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}

	in := m.featureCount()
	for i, l := range spec.Layers {
		out := len(l.Weights)
		if out == 0 {
			return nil, fmt.Errorf("layer %d has no units", i)
		}
		if len(l.Bias) != out {
			return nil, fmt.Errorf("layer %d: %d biases for %d units", i, len(l.Bias), out)
		}
		switch l.Activation {
		case "relu", "linear", "softmax":
		case "":
			l.Activation = "linear"
		default:
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}

		flat := make([]float64, 0, out*in)
		for r, row := range l.Weights {
			if len(row) != in {
				return nil, fmt.Errorf("layer %d row %d: %d weights, want %d", i, r, len(row), in)
			}
			flat = append(flat, row...)
		}
		m.layers = append(m.layers, denseLayer{
			weights:    mat.NewDense(out, in, flat),
			bias:       mat.NewVecDense(out, append([]float64(nil), l.Bias...)),
			activation: l.Activation,
		})
		in = out
	}
	return m, nil
}

func (m *DenseModel) featureCount() int {
	if m.grid == 0 {
		return m.width * m.height * imaging.InputChannels
	}
	return m.grid * m.grid * imaging.InputChannels
}

// Predict runs the forward pass.
func (m *DenseModel) Predict(t imaging.Tensor) ([]float64, error) {
	if err := t.Validate(m.width, m.height, imaging.InputChannels); err != nil {
		return nil, err
	}

	x := mat.NewVecDense(m.featureCount(), m.features(t))
	for _, l := range m.layers {
		rows, _ := l.weights.Dims()
		y := mat.NewVecDense(rows, nil)
		y.MulVec(l.weights, x)
		y.AddVec(y, l.bias)

		raw := y.RawVector().Data
		switch l.activation {
		case "relu":
			for i, v := range raw {
				if v < 0 {
					raw[i] = 0
				}
			}
		case "softmax":
			softmax(raw)
		}
		x = y
	}
	return append([]float64(nil), x.RawVector().Data...), nil
}

// features flattens or average-pools the tensor in (row, column, channel) order.
func (m *DenseModel) features(t imaging.Tensor) []float64 {
	if m.grid == 0 {
		out := make([]float64, len(t.Data))
		for i, v := range t.Data {
			out[i] = float64(v)
		}
		return out
	}

	c := t.Channels
	out := make([]float64, m.grid*m.grid*c)
	for gy := 0; gy < m.grid; gy++ {
		y0, y1 := gy*t.Height/m.grid, (gy+1)*t.Height/m.grid
		for gx := 0; gx < m.grid; gx++ {
			x0, x1 := gx*t.Width/m.grid, (gx+1)*t.Width/m.grid
			cell := out[(gy*m.grid+gx)*c : (gy*m.grid+gx+1)*c]
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					for ch := 0; ch < c; ch++ {
						cell[ch] += float64(t.At(x, y, ch))
					}
				}
			}
			floats.Scale(1/float64((y1-y0)*(x1-x0)), cell)
		}
	}
	return out
}

// Close is a no-op; the matrices are garbage collected.
func (m *DenseModel) Close() error { return nil }

func softmax(v []float64) {
	peak := floats.Max(v)
	for i := range v {
		v[i] = math.Exp(v[i] - peak)
	}
	floats.Scale(1/floats.Sum(v), v)
}
