package main

import (
	"context"
	"fmt"
	"os"

	"github.com/atomizehq/atomizer/internal/atomize"
	"github.com/atomizehq/atomizer/internal/config"
	"github.com/atomizehq/atomizer/internal/extract"
	"github.com/atomizehq/atomizer/internal/filter"
	atomhttp "github.com/atomizehq/atomizer/internal/http"
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

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Job store
	log.Info("Setting up job store...", "backend", cfg.JobStoreBackend)
	var store jobstore.Store
	switch cfg.JobStoreBackend {
	case "redis":
		redisStore, err := jobstore.NewRedisStore(log, cfg.RedisAddr, cfg.RedisKeyPrefix)
		if err != nil {
			log.Fatal("Could not init redis job store", "error", err)
		}
		defer redisStore.Close()
		store = redisStore
	default:
		store = jobstore.NewMemoryStore()
	}

	// Metrics
	m := metrics.New(nil)

	// Providers
	log.Info("Setting up providers...", "default", cfg.AIProvider)
	registry := provider.NewRegistry(cfg, log)
	defaultProvider, err := registry.Default(ctx)
	if err != nil {
		log.Fatal("Could not init default provider", "error", err)
	}
	structureProvider, err := registry.ForTask(ctx, config.TaskStructureExtractor)
	if err != nil {
		log.Fatal("Could not init structure extractor provider", "error", err)
	}
	summarizerProvider, err := registry.ForTask(ctx, config.TaskContentSummarizer)
	if err != nil {
		log.Fatal("Could not init content summarizer provider", "error", err)
	}
	defaultProvider = m.WrapProvider(defaultProvider)
	structureProvider = m.WrapProvider(structureProvider)
	summarizerProvider = m.WrapProvider(summarizerProvider)

	// Services
	log.Info("Setting up services...")
	extractor := extract.NewExtractor(structureProvider, cfg, log)
	contentFilter, err := filter.New(defaultProvider, log, cfg.FilterKeywordsPath)
	if err != nil {
		log.Fatal("Could not init content filter", "error", err)
	}
	ocrService := ocr.New(defaultProvider, log, cfg.MaxConcurrentOCR)
	atomizer := atomize.New(defaultProvider, cfg, log)
	summarizer := summarize.New(summarizerProvider, log)

	pipe := pipeline.New(store, extractor, contentFilter, ocrService, nil, m, log)
	controller := workflow.NewController(store, atomizer, summarizer, log)

	// Handlers
	log.Info("Setting up handlers...")
	uploadHandler := handlers.NewUploadHandler(store, pipe, cfg.UploadsDir, m, log)
	workflowHandler := handlers.NewWorkflowHandler(controller, m)
	previewHandler := handlers.NewPreviewHandler(store)
	exportHandler := handlers.NewExportHandler(store, cfg.OutputDir, m, log)

	// Router
	log.Info("Setting up router...")
	server := atomhttp.NewServer(atomhttp.RouterConfig{
		UploadHandler:   uploadHandler,
		WorkflowHandler: workflowHandler,
		PreviewHandler:  previewHandler,
		ExportHandler:   exportHandler,
		Metrics:         m,
		Log:             log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Info("Server listening", "addr", addr)
	if err := server.Run(addr); err != nil {
		log.Error("Server failed", "error", err)
	}
}
