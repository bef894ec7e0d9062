package classifier

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/anime-shed/street-inspector-go/internal/imaging"
)

// Model is a loaded network that maps an input tensor to class probabilities.
// A Model is used by one goroutine at a time.
type Model interface {
	Predict(t imaging.Tensor) ([]float64, error)
	Close() error
}

// Opener loads a model artifact from disk.
type Opener func(path string) (Model, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// RegisterOpener binds a file extension (".json", ".onnx") to a backend.
func RegisterOpener(ext string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[strings.ToLower(ext)] = open
}

func openerFor(path string) (Opener, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	openersMu.RLock()
	open, ok := openers[ext]
	openersMu.RUnlock()
	if !ok {
		return nil, ext, fmt.Errorf("no backend for %q (known: %s)", ext, strings.Join(knownExtensions(), ", "))
	}
	return open, ext, nil
}

func knownExtensions() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	exts := make([]string, 0, len(openers))
	for ext := range openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
