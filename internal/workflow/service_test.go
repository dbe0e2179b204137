package workflow

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestService(t *testing.T, mux *http.ServeMux) *Service {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := provider.New(models.ProviderConfig{Name: "workflow", BaseURL: server.URL, APIKey: "key"},
		provider.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return NewService(client)
}

func TestRun_PostsDeployment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/run", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wf-1", body["deployment_id"])
		_, _ = io.WriteString(w, `{"run_id":"run-1"}`)
	})
	service := newTestService(t, mux)

	run, err := service.Run(context.Background(), "wf-1", map[string]any{"prompt": "car chase"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.RunId)
	assert.Equal(t, "queued", run.Status)
}

func TestStatus_FlattensOutputs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/run", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "run-1", r.URL.Query().Get("run_id"))
		_, _ = io.WriteString(w, `{"id":"run-1","status":"success","outputs":[
			{"data":{"images":[{"url":"https://cdn/a.png"},{"url":"https://cdn/b.png"}]},"node_meta":{"node_id":"9"}},
			{"data":{"videos":[{"url":"https://cdn/c.mp4"}]},"node_meta":{"node_id":"12"}}]}`)
	})
	service := newTestService(t, mux)

	run, err := service.Status(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "success", run.Status)
	require.Len(t, run.Outputs, 3)
	assert.Equal(t, models.WorkflowOutput{Node: "12", Type: "video", URL: "https://cdn/c.mp4"}, run.Outputs[2])
}

func TestCancel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/run/run-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	service := newTestService(t, mux)

	run, err := service.Cancel(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", run.Status)
}

func TestFlattenOutputs_Empty(t *testing.T) {
	assert.Empty(t, flattenOutputs(gjson.Parse(`null`)))
}
