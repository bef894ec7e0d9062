package container

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/street-inspector-go/internal/classifier"
	"github.com/anime-shed/street-inspector-go/internal/config"
	"github.com/anime-shed/street-inspector-go/pkg/models"
)

func testConfig(t *testing.T, candidates ...string) *config.Config {
	t.Helper()
	t.Setenv("NOTIFIER", "none")
	t.Setenv("STORAGE_BACKEND", "none")
	t.Setenv("MODEL_PATHS", "")
	t.Setenv("BASE_DIR", t.TempDir())
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "history.db"))
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	if len(candidates) > 0 {
		cfg.Model.CandidatePaths = candidates
	}
	cfg.Model.InferenceWorkers = 1
	return cfg
}

func health(t *testing.T, c *Container) models.HealthResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewContainer_WithModel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	data, err := json.Marshal(classifier.DenseSpec{Grid: 1, Layers: []classifier.LayerSpec{{
		Weights: [][]float64{{1, 0, 0}, {0, 1, 0}}, Bias: []float64{0, 0}, Activation: "softmax",
	}}})
	require.NoError(t, err)
	modelPath := filepath.Join(t.TempDir(), "model_deep.json")
	require.NoError(t, os.WriteFile(modelPath, data, 0o644))

	c, err := NewContainer(testConfig(t, modelPath))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })

	require.True(t, c.Classifier().Available())
	require.NotNil(t, c.Pipeline())
	require.NotNil(t, c.Notifier())
	resp := health(t, c)
	require.True(t, resp.ModelLoaded)
	require.Equal(t, modelPath, resp.ModelPath)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestNewContainer_WithoutModelStillServes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, err := NewContainer(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.False(t, c.Classifier().Available())
	require.False(t, health(t, c).ModelLoaded)
}

func TestNewContainer_RejectsBadStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "azure"
	cfg.Storage.AzureAccount = ""

	_, err := NewContainer(cfg)
	require.Error(t, err)
}

func TestNewContainer_RequiresConfig(t *testing.T) {
	_, err := NewContainer(nil)
	require.Error(t, err)
}
