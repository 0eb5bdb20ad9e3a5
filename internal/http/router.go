package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpH "github.com/atomizehq/atomizer/internal/http/handlers"
	httpMW "github.com/atomizehq/atomizer/internal/http/middleware"
	"github.com/atomizehq/atomizer/internal/metrics"
	"github.com/atomizehq/atomizer/internal/platform/logger"
)

type RouterConfig struct {
	UploadHandler   *httpH.UploadHandler
	WorkflowHandler *httpH.WorkflowHandler
	PreviewHandler  *httpH.PreviewHandler
	ExportHandler   *httpH.ExportHandler

	Metrics *metrics.Metrics
	Log     *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health + metrics
	r.GET("/healthcheck", httpH.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Upload + jobs
		if cfg.UploadHandler != nil {
			api.POST("/upload", cfg.UploadHandler.Upload)
			api.GET("/status/:id", cfg.UploadHandler.GetStatus)
			api.GET("/jobs", cfg.UploadHandler.ListJobs)
			api.DELETE("/jobs/:id", cfg.UploadHandler.DeleteJob)
		}

		// Preview + structure edits
		if cfg.PreviewHandler != nil {
			api.GET("/preview/:id", cfg.PreviewHandler.GetPreview)
			api.POST("/preview/:id", cfg.PreviewHandler.UpdatePreview)
			api.POST("/preview/:id/toggle/:nodeId", cfg.PreviewHandler.ToggleSection)
			api.GET("/preview/:id/stats", cfg.PreviewHandler.Stats)
		}

		// Workflow
		if cfg.WorkflowHandler != nil {
			wf := api.Group("/workflow/:id")
			wf.GET("/status", cfg.WorkflowHandler.Status)
			wf.GET("/full-text", cfg.WorkflowHandler.FullText)
			wf.GET("/node/:nodeId/content", cfg.WorkflowHandler.NodeContent)

			// Node-scoped operations live under /node/:nodeId because gin's
			// route tree cannot mix a static segment with a param segment at
			// the same position.
			wf.POST("/approve-structure", cfg.WorkflowHandler.ApproveStructure)
			wf.GET("/atomization-queue", cfg.WorkflowHandler.AtomizationQueue)
			wf.POST("/atomization/approve-all", cfg.WorkflowHandler.ApproveAllAtomization)
			wf.POST("/atomization/node/:nodeId/approve", cfg.WorkflowHandler.ApproveAtomization)
			wf.POST("/atomization/node/:nodeId/regenerate", cfg.WorkflowHandler.RegenerateAtomization)
			wf.POST("/atomization/node/:nodeId/split", cfg.WorkflowHandler.SplitNode)

			wf.POST("/proceed-to-content", cfg.WorkflowHandler.ProceedToContent)
			wf.GET("/content-queue", cfg.WorkflowHandler.ContentQueue)
			wf.POST("/content/approve-all", cfg.WorkflowHandler.ApproveAllContent)
			wf.POST("/content/node/:nodeId/approve", cfg.WorkflowHandler.ApproveContent)
			wf.POST("/content/node/:nodeId/regenerate", cfg.WorkflowHandler.RegenerateContent)
			wf.PUT("/content/node/:nodeId/edit", cfg.WorkflowHandler.EditContent)

			wf.POST("/complete", cfg.WorkflowHandler.Complete)
		}

		// Export
		if cfg.ExportHandler != nil {
			api.POST("/export/:id", cfg.ExportHandler.Export)
			api.GET("/export/:id/download", cfg.ExportHandler.Download)
			api.GET("/export/:id/files", cfg.ExportHandler.Files)
		}
	}

	return r
}
