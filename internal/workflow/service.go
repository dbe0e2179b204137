package workflow

import (
	"context"
	"net/http"
	"net/url"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// outputKinds maps provider output arrays to the artifact type we report.
var outputKinds = []struct {
	key  string
	kind string
}{
	{"images", "image"},
	{"gifs", "gif"},
	{"videos", "video"},
	{"files", "file"},
}

// Service wraps the GPU workflow provider.
type Service struct {
	client *provider.Client
}

func NewService(client *provider.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Configured() bool {
	return s.client.Configured()
}

func (s *Service) Name() string {
	return s.client.Name()
}

// Run queues a workflow deployment with the given inputs.
func (s *Service) Run(ctx context.Context, workflowId string, inputs map[string]any) (*models.WorkflowRun, error) {
	if inputs == nil {
		inputs = map[string]any{}
	}
	res, err := s.client.JSON(ctx, http.MethodPost, "/api/run", nil, map[string]any{
		"deployment_id": workflowId,
		"inputs":        inputs,
	})
	if err != nil {
		return nil, err
	}

	runId := res.Get("run_id").String()
	if runId == "" {
		return nil, &provider.Error{Provider: s.client.Name(), Kind: provider.KindUpstream, Message: "response missing run_id"}
	}

	zap.L().Info("Workflow run queued", zap.String("workflow_id", workflowId), zap.String("run_id", runId))
	return &models.WorkflowRun{RunId: runId, Status: "queued", Outputs: []models.WorkflowOutput{}}, nil
}

// Status fetches a run and flattens its outputs.
func (s *Service) Status(ctx context.Context, runId string) (*models.WorkflowRun, error) {
	res, err := s.client.JSON(ctx, http.MethodGet, "/api/run", url.Values{"run_id": {runId}}, nil)
	if err != nil {
		return nil, err
	}

	return &models.WorkflowRun{
		RunId:   runId,
		Status:  res.Get("status").String(),
		Outputs: flattenOutputs(res.Get("outputs")),
	}, nil
}

func (s *Service) Cancel(ctx context.Context, runId string) (*models.WorkflowRun, error) {
	if _, err := s.client.Do(ctx, http.MethodPost, "/api/run/"+url.PathEscape(runId)+"/cancel", nil, map[string]any{}); err != nil {
		return nil, err
	}
	zap.L().Info("Workflow run cancelled", zap.String("run_id", runId))
	return &models.WorkflowRun{RunId: runId, Status: "cancelled", Outputs: []models.WorkflowOutput{}}, nil
}

func flattenOutputs(outputs gjson.Result) []models.WorkflowOutput {
	flat := []models.WorkflowOutput{}
	outputs.ForEach(func(_, out gjson.Result) bool {
		node := out.Get("node_meta.node_id").String()
		data := out.Get("data")
		for _, k := range outputKinds {
			data.Get(k.key).ForEach(func(_, item gjson.Result) bool {
				if u := item.Get("url").String(); u != "" {
					flat = append(flat, models.WorkflowOutput{Node: node, Type: k.kind, URL: u})
				}
				return true
			})
		}
		return true
	})
	return flat
}
