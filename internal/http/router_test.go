package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atomizehq/atomizer/internal/atomize"
	"github.com/atomizehq/atomizer/internal/config"
	"github.com/atomizehq/atomizer/internal/domain"
	"github.com/atomizehq/atomizer/internal/extract"
	"github.com/atomizehq/atomizer/internal/filter"
	"github.com/atomizehq/atomizer/internal/http/handlers"
	"github.com/atomizehq/atomizer/internal/jobstore"
	"github.com/atomizehq/atomizer/internal/metrics"
	"github.com/atomizehq/atomizer/internal/ocr"
	"github.com/atomizehq/atomizer/internal/pipeline"
	"github.com/atomizehq/atomizer/internal/platform/logger"
	"github.com/atomizehq/atomizer/internal/provider"
	"github.com/atomizehq/atomizer/internal/summarize"
	"github.com/atomizehq/atomizer/internal/workflow"
)

type fakeProvider struct{}

func (fakeProvider) Complete(context.Context, provider.CompleteRequest) (string, error) {
	return "{}", nil
}

func (fakeProvider) AnalyzeImage(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (fakeProvider) EmbedText(context.Context, string) ([]float32, error) { return nil, nil }

func (fakeProvider) EmbedTexts(context.Context, []string) ([][]float32, error) { return nil, nil }

func (fakeProvider) ModelInfo() provider.ModelInfo {
	return provider.ModelInfo{Provider: "fake", Model: "fake"}
}

func newTestRouter(t *testing.T) (*gin.Engine, *jobstore.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	cfg := config.Settings{
		MaxTOCChars: 60000, MaxChapterChars: 80000,
		MaxStructureChars: 300000, MaxContentChars: 100000,
		MaxRecursionDepth: 10, MinContentLenToSplit: 500,
		MaxConcurrentOCR: 2,
	}
	p := fakeProvider{}
	store := jobstore.NewMemoryStore()
	m := metrics.New(prometheus.NewRegistry())

	fil, err := filter.New(p, log, "")
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	pipe := pipeline.New(store, extract.NewExtractor(p, cfg, log), fil,
		ocr.New(p, log, cfg.MaxConcurrentOCR), nil, m, log)
	controller := workflow.NewController(store,
		atomize.New(p, cfg, log), summarize.New(p, log), log)

	router := NewRouter(RouterConfig{
		UploadHandler:   handlers.NewUploadHandler(store, pipe, t.TempDir(), m, log),
		WorkflowHandler: handlers.NewWorkflowHandler(controller, m),
		PreviewHandler:  handlers.NewPreviewHandler(store),
		ExportHandler:   handlers.NewExportHandler(store, t.TempDir(), m, log),
		Metrics:         m,
		Log:             log,
	})
	return router, store
}

func seedJob(t *testing.T, store *jobstore.MemoryStore, stage domain.WorkflowStage, withStructure bool) string {
	t.Helper()
	job := domain.NewProcessingJob("book.pdf")
	job.WorkflowStage = stage
	if withStructure {
		job.Structure = &domain.DocumentStructure{
			Title: "Book",
			Root: &domain.StructureNode{
				ID: "root", Title: "Book", Type: domain.SectionBook, Included: true,
				Children: []*domain.StructureNode{
					{ID: "s1", Title: "Section 1", Type: domain.SectionSection, Included: true},
				},
			},
			TotalPages: 1,
		}
	}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job.JobID
}

func do(router *gin.Engine, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthcheck(t *testing.T) {
	router, _ := newTestRouter(t)
	w := do(router, http.MethodGet, "/healthcheck", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	router, _ := newTestRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fmt.Fprint(part, "not a pdf")
	mw.Close()

	w := do(router, http.MethodPost, "/api/upload", &body, mw.FormDataContentType())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "only PDF files are accepted") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestStatusUnknownJobIs404(t *testing.T) {
	router, _ := newTestRouter(t)
	w := do(router, http.MethodGet, "/api/status/nope", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestApproveStructureWrongStageIs409(t *testing.T) {
	router, store := newTestRouter(t)
	jobID := seedJob(t, store, domain.StageExtracting, true)

	w := do(router, http.MethodPost, "/api/workflow/"+jobID+"/approve-structure", nil, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestPreviewToggleUpdatesInclusion(t *testing.T) {
	router, store := newTestRouter(t)
	jobID := seedJob(t, store, domain.StageAwaitingStructureApproval, true)

	w := do(router, http.MethodPost, "/api/preview/"+jobID+"/toggle/s1?included=false", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	job, _ := store.Get(context.Background(), jobID)
	if domain.FindNode(job.Structure.Root, "s1").Included {
		t.Fatalf("toggle did not persist")
	}
}

func TestPreviewToggleUnknownSectionIs404(t *testing.T) {
	router, store := newTestRouter(t)
	jobID := seedJob(t, store, domain.StageAwaitingStructureApproval, true)

	w := do(router, http.MethodPost, "/api/preview/"+jobID+"/toggle/missing", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestExportBeforeCompletionIs409(t *testing.T) {
	router, store := newTestRouter(t)
	jobID := seedJob(t, store, domain.StageAwaitingContentApproval, true)

	w := do(router, http.MethodPost, "/api/export/"+jobID, nil, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestExportCompletedJobWritesFiles(t *testing.T) {
	router, store := newTestRouter(t)
	jobID := seedJob(t, store, domain.StageCompleted, true)

	w := do(router, http.MethodPost, "/api/export/"+jobID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res struct {
		OutputPath string `json:"output_path"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.OutputPath == "" || !strings.Contains(res.Message, "Exported") {
		t.Fatalf("res = %+v", res)
	}
}

func TestWorkflowStatusEndpoint(t *testing.T) {
	router, store := newTestRouter(t)
	jobID := seedJob(t, store, domain.StageAwaitingStructureApproval, true)

	w := do(router, http.MethodGet, "/api/workflow/"+jobID+"/status", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res workflow.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.WorkflowStage != domain.StageAwaitingStructureApproval {
		t.Fatalf("res = %+v", res)
	}
}
