// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package translator assembles the contract translation service.
//
// This package owns the service lifecycle: it opens the artifact store,
// loads the optional example corpus, builds the capability set for the
// configured backend, wires the pipeline orchestrator, and serves the
// HTTP surface (SSE/WebSocket streaming, run retrieval, scanning,
// dataset inspection) with OpenTelemetry tracing and Prometheus metrics.
//
// # Usage
//
//	cfg := translator.Config{Port: 12220, Backend: "static"}
//	svc, err := translator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package translator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/solforge/services/audit_engine"
	"github.com/AleutianAI/solforge/services/llm"
	"github.com/AleutianAI/solforge/services/translator/dataset"
	"github.com/AleutianAI/solforge/services/translator/datatypes"
	"github.com/AleutianAI/solforge/services/translator/fewshot"
	"github.com/AleutianAI/solforge/services/translator/observability"
	"github.com/AleutianAI/solforge/services/translator/pipeline"
	"github.com/AleutianAI/solforge/services/translator/routes"
	"github.com/AleutianAI/solforge/services/translator/solc"
	"github.com/AleutianAI/solforge/services/translator/storage"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the translator service lifecycle contract.
//
// # Description
//
// Service abstracts the assembled server so tests and alternative
// entry points can drive it without reaching into construction
// details. Run blocks; Router exposes the engine for in-process
// integration tests.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use after construction.
// Run is called at most once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error

	// Router returns the configured engine, primarily for tests.
	// Callers must not register further routes on it.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds translator service configuration.
//
// Every field has a default applied by New; the zero Config starts an
// offline service (static backend, on-disk store, no corpus, no
// retrieval).
type Config struct {
	// Port is the HTTP server port. Default: 12220.
	Port int

	// Backend selects the generative capability set: "openai" or
	// "static". Default: "static" (deterministic, zero I/O).
	Backend string

	// StorePath is the BadgerDB directory for run artifacts.
	// Default: "./data/translator". Ignored when InMemoryStore is set.
	StorePath string

	// InMemoryStore switches the artifact store to in-memory mode.
	// Runs then do not survive a restart; meant for demos and tests.
	InMemoryStore bool

	// CorpusPath is the optional JSONL example corpus. Empty disables
	// the dataset endpoints (they answer 503) and few-shot indexing.
	CorpusPath string

	// WeaviateURL enables few-shot retrieval when set. Empty runs the
	// pipeline without generation examples.
	WeaviateURL string

	// EmbedURL is the optional embedding service for the retriever;
	// without it retrieval falls back to keyword ranking.
	EmbedURL string

	// OTelEndpoint is the OTLP gRPC collector address.
	// Default: "solforge-otel-collector:4317".
	OTelEndpoint string

	// DisableMetrics skips Prometheus metric registration. The
	// /metrics route stays mounted either way.
	DisableMetrics bool

	// GinMode overrides the Gin framework mode ("debug", "release",
	// "test"). Empty leaves the GIN_MODE env var in charge.
	GinMode string
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12220
	}
	if cfg.Backend == "" {
		cfg.Backend = "static"
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "./data/translator"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "solforge-otel-collector:4317"
	}
	return cfg
}

// validateConfig rejects values New cannot serve.
func validateConfig(cfg Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	switch cfg.Backend {
	case "openai", "static":
	default:
		return fmt.Errorf("unknown backend %q (want openai or static)", cfg.Backend)
	}
	return nil
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// All fields are read-only after New returns.
type service struct {
	config        Config
	router        *gin.Engine
	store         *storage.Store
	corpus        *dataset.Corpus
	engine        *audit_engine.Engine
	orch          *pipeline.Orchestrator
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New assembles a translator Service from cfg.
//
// # Description
//
// Initialization order: defaults and validation, OpenTelemetry tracer,
// Prometheus metrics, artifact store (with its value-log GC runner),
// optional corpus, audit engine, capability set, optional few-shot
// retriever, advisory compile checker, pipeline, router. Optional
// collaborators degrade with a warning; required ones fail
// construction and roll back whatever was already opened.
//
// # Inputs
//
//   - cfg: service configuration; zero values use defaults.
//
// # Outputs
//
//   - Service: ready to Run.
//   - error: non-nil when a required component cannot initialize.
//
// # Assumptions
//
//   - The OTel collector may be unreachable; export fails quietly in
//     the background rather than failing construction.
//   - The OpenAI backend reads its API key from the environment.
func New(cfg Config) (Service, error) {
	cfg = applyConfigDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &service{config: cfg}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if !cfg.DisableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus pipeline metrics")
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	s.initCorpus()

	s.engine, err = audit_engine.NewEngine()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize audit engine: %w", err)
	}

	caps, err := llm.NewCapabilities(cfg.Backend)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize %s backend: %w", cfg.Backend, err)
	}
	slog.Info("Capability backend configured", "backend", caps.Backend)

	pcfg := pipeline.DefaultConfig()
	pcfg.Checker = solc.NewChecker()
	if retriever := s.initRetriever(); retriever != nil {
		pcfg.Retriever = retriever
	}

	s.orch, err = pipeline.New(caps, s.engine, s.store, pcfg)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until it stops. Resources are
// released when it returns.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting translator server", "port", s.config.Port,
		"backend", s.config.Backend, "in_memory_store", s.config.InMemoryStore)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing over an
// insecure OTLP gRPC connection, appropriate for internal networks.
// The returned cleanup flushes and shuts the exporter down.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("translator-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore opens the artifact store. Persistent mode uses synchronous
// writes so the pipeline's durability guarantee holds across restarts.
func (s *service) initStore() error {
	scfg := storage.DefaultConfig()
	if s.config.InMemoryStore {
		scfg = storage.InMemoryConfig()
	} else {
		scfg.Path = s.config.StorePath
		scfg.Logger = slog.Default()
	}

	store, err := storage.Open(scfg)
	if err != nil {
		return err
	}
	s.store = store

	slog.Info("Artifact store opened",
		"path", store.Path(), "in_memory", store.InMemory())
	return nil
}

// initCorpus loads the optional example corpus. A configured path that
// fails to load degrades to no corpus: the dataset endpoints answer
// 503 and generation prompts carry no examples.
func (s *service) initCorpus() {
	if s.config.CorpusPath == "" {
		slog.Info("No corpus configured, dataset endpoints unavailable")
		return
	}

	corpus, err := dataset.Load(s.config.CorpusPath)
	if err != nil {
		slog.Warn("Corpus load failed, continuing without dataset",
			"path", s.config.CorpusPath, "error", err)
		return
	}
	s.corpus = corpus

	stats := corpus.Stats()
	slog.Info("Corpus loaded", "path", s.config.CorpusPath,
		"records", stats.Records, "skipped", stats.Skipped)
}

// initRetriever builds the few-shot retriever and indexes the loaded
// corpus into it. Both steps are optional: any failure logs a warning
// and the pipeline runs without generation examples.
func (s *service) initRetriever() *fewshot.Retriever {
	retriever, err := fewshot.New(fewshot.Config{
		WeaviateURL: s.config.WeaviateURL,
		EmbedURL:    s.config.EmbedURL,
	})
	if err != nil {
		slog.Warn("Few-shot retriever initialization failed, running without examples",
			"error", err)
		return nil
	}
	if retriever == nil {
		return nil
	}

	ctx := context.Background()
	if err := retriever.EnsureSchema(ctx); err != nil {
		slog.Warn("Weaviate schema check failed, running without examples",
			"error", err)
		return nil
	}

	if s.corpus != nil {
		records := make([]datatypes.DatasetRecord, s.corpus.Len())
		for i := range records {
			records[i] = s.corpus.Record(i)
		}
		indexed, err := retriever.Index(ctx, records)
		if err != nil {
			slog.Warn("Corpus indexing failed, retrieval may return stale examples",
				"error", err)
		} else {
			slog.Info("Corpus indexed for few-shot retrieval", "records", indexed)
		}
	}

	return retriever
}

// initRouter sets up the Gin engine, tracing middleware, and routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("translator-service"))

	routes.SetupRoutes(s.router, s.orch, s.store, s.engine, s.corpus)
}

// cleanup releases resources in reverse construction order. Safe to
// call with partially initialized state.
func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Artifact store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
