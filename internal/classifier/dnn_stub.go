//go:build !gocv
// +build !gocv

package classifier

import "fmt"

func init() {
	RegisterOpener(".onnx", OpenDNN)
	RegisterOpener(".pb", OpenDNN)
}

// OpenDNN fails when the binary is built without the gocv tag.
func OpenDNN(path string) (Model, error) {
	return nil, fmt.Errorf("%s: DNN models require a build with -tags gocv", path)
}
