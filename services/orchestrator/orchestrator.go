// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator wires and runs the DocChat service.
//
// This package contains the Service type that coordinates every component:
// configuration, tracing and metrics, the answering backends, the answer
// pipeline, the Zalo channel with its event bus, and HTTP routing.
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	svc, err := orchestrator.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	return svc.Run(ctx)
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/llm"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/channel"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/config"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/dedup"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/exemplars"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/pipeline"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/search"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName identifies the process in traces and logs.
const ServiceName = "docchat"

const (
	dedupKey        = "docchat:dedup:processed"
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 30 * time.Second
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the lifecycle of the DocChat service.
//
// # Thread Safety
//
// Run blocks and should only be called once per instance. Router and
// Pipeline are safe to call concurrently after New returns.
type Service interface {
	// Run serves HTTP and consumes the inbound event bus until ctx is
	// cancelled or a component fails, then shuts everything down.
	Run(ctx context.Context) error

	// Router returns the configured gin engine, for tests.
	Router() *gin.Engine

	// Pipeline returns the answer pipeline, for the one-shot CLI.
	Pipeline() *pipeline.Pipeline

	// Close releases backends and connections. Run calls it on return.
	Close()
}

// Option customizes New.
type Option func(*service)

// WithBackends replaces the answering and grounding backends selected by
// the configuration. Used by tests and embedders.
func WithBackends(client llm.LLMClient, grounder llm.GroundedClient) Option {
	return func(s *service) {
		s.llmClient = client
		s.grounder = grounder
	}
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	cfg     *config.Config
	router  *gin.Engine
	metrics *observability.Metrics

	llmClient llm.LLMClient
	grounder  llm.GroundedClient
	gemini    *llm.GeminiClient
	searcher  *search.DocumentIndex

	store    *conversation.MemoryStore
	corpus   *exemplars.Corpus
	pipeline *pipeline.Pipeline

	guard   dedup.Guard
	tokens  *channel.FileTokenSource
	zalo    *channel.ZaloClient
	adapter *channel.Adapter
	bus     *channel.Bus

	redisClients  map[string]*redis.Client
	tracerCleanup func(context.Context)
	closeOnce     sync.Once
}

// New wires every component from cfg.
//
// # Description
//
// Initialization order:
//  1. Tracing (only when telemetry.otel_endpoint is set) and metrics.
//  2. Answering and grounding backends, unless WithBackends was given.
//  3. Session store, exemplar corpus, answer pipeline.
//  4. Channel integration when channel.enabled: dedup guard, OA token,
//     delivery client, adapter, event bus.
//  5. HTTP router.
//
// # Inputs
//
//   - ctx: Bounds backend construction and schema checks.
//   - cfg: Validated configuration from config.Load.
//   - opts: Optional overrides.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Any initialization failure. Partially created resources are
//     released.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("orchestrator requires a configuration")
	}
	s := &service{cfg: cfg, redisClients: map[string]*redis.Client{}}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	if cfg.Telemetry.OTelEndpoint != "" {
		cleanup, err := initTracer(ctx, cfg.Telemetry.OTelEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	} else {
		slog.Info("OTel endpoint not configured, trace export disabled")
	}
	if cfg.Telemetry.EnableMetrics {
		s.metrics = observability.InitMetrics()
	}

	steps := []func(context.Context) error{
		s.initBackends,
		s.initPipeline,
		s.initChannel,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	s.initRouter()
	return s, nil
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Run starts the HTTP server and the event bus consumer.
func (s *service) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

// serve runs every long-lived component on ln until ctx is done.
func (s *service) serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	g, gctx := errgroup.WithContext(ctx)

	if s.bus != nil {
		ready := make(chan struct{})
		g.Go(func() error {
			return s.bus.Run(gctx, s.adapter.Process, ready)
		})
		// In-process buses drop messages published before the consumer
		// subscribes, so the webhook is not served until it has.
		select {
		case <-ready:
		case <-gctx.Done():
			_ = ln.Close()
			return g.Wait()
		}
	}

	if s.cfg.Exemplars.Watch && s.corpus.Path() != "" {
		if err := s.corpus.Watch(gctx); err != nil {
			slog.Warn("Exemplar corpus hot reload disabled", "error", err)
		}
	}
	if s.tokens != nil {
		if err := s.tokens.Watch(gctx); err != nil {
			slog.Warn("OA token hot reload disabled", "error", err)
		}
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		slog.Info("Starting docchat server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down docchat server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases all resources held by the service. Safe to call more than
// once.
func (s *service) Close() {
	s.closeOnce.Do(func() {
		if s.bus != nil {
			if err := s.bus.Close(); err != nil {
				slog.Warn("Event bus close error", "error", err)
			}
		}
		for addr, client := range s.redisClients {
			if err := client.Close(); err != nil {
				slog.Warn("Redis close error", "addr", addr, "error", err)
			}
		}
		if s.tracerCleanup != nil {
			s.tracerCleanup(context.Background())
		}
	})
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer sets up the OTLP trace exporter.
//
// # Limitations
//
//   - Uses an insecure gRPC connection (appropriate for internal networks).
func initTracer(ctx context.Context, endpoint string) (func(context.Context), error) {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	slog.Info("OTel tracing enabled", "endpoint", endpoint)
	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}

// initBackends creates the answering client and the grounding source.
func (s *service) initBackends(ctx context.Context) error {
	cfg := s.cfg
	if s.llmClient != nil && s.grounder != nil {
		slog.Info("Using injected answering backends")
		return nil
	}

	needGemini := (s.llmClient == nil && cfg.LLM.Backend == "gemini") ||
		(s.grounder == nil && cfg.Retrieval.Backend == "gemini")
	if needGemini {
		model := ""
		if cfg.LLM.Backend == "gemini" {
			model = cfg.LLM.Model
		}
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:          cfg.LLM.GeminiAPIKey,
			Model:           model,
			FileSearchStore: cfg.Retrieval.FileSearchStore,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		s.gemini = client
	}

	if s.llmClient == nil {
		if err := s.initLLM(); err != nil {
			return err
		}
	}
	if s.grounder != nil {
		return nil
	}

	switch cfg.Retrieval.Backend {
	case "gemini":
		s.grounder = s.gemini
		slog.Info("Using Gemini File Search retrieval", "store_set", cfg.Retrieval.FileSearchStore != "")
	case "weaviate":
		client, err := search.NewWeaviateClient(cfg.Retrieval.WeaviateURL)
		if err != nil {
			return err
		}
		if err := datatypes.EnsureDocumentSchema(ctx, client, cfg.Retrieval.WeaviateClass); err != nil {
			return fmt.Errorf("failed to ensure weaviate schema: %w", err)
		}
		s.searcher = search.NewDocumentIndex(client, cfg.Retrieval.WeaviateClass, cfg.Retrieval.Limit)
		s.grounder = s.searcher
		slog.Info("Using Weaviate retrieval", "url", cfg.Retrieval.WeaviateURL, "class", cfg.Retrieval.WeaviateClass)
	default:
		return fmt.Errorf("unknown retrieval backend %q", cfg.Retrieval.Backend)
	}
	return nil
}

// initLLM creates the client used by the analysis, generation and
// validation stages.
func (s *service) initLLM() error {
	cfg := s.cfg
	var err error
	switch cfg.LLM.Backend {
	case "gemini":
		s.llmClient = s.gemini
		slog.Info("Using Gemini LLM backend", "model", cfg.LLM.Model)
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient(cfg.LLM.OpenAIAPIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
		slog.Info("Using OpenAI LLM backend")
	case "anthropic":
		s.llmClient, err = llm.NewAnthropicClient(cfg.LLM.AnthropicAPIKey, cfg.LLM.Model, cfg.LLM.CallTimeout)
		slog.Info("Using Anthropic (Claude) LLM backend")
	default:
		err = fmt.Errorf("unknown LLM backend %q", cfg.LLM.Backend)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return nil
}

// initPipeline creates the session store, the exemplar corpus and the
// answer pipeline.
func (s *service) initPipeline(_ context.Context) error {
	cfg := s.cfg
	s.store = conversation.NewMemoryStore(cfg.Session.MaxHistoryTurns)

	s.corpus = exemplars.NewCorpus(cfg.Exemplars.Path)
	if cfg.Exemplars.Path != "" {
		if err := s.corpus.Load(); err != nil {
			slog.Warn("Exemplar corpus not loaded, continuing without exemplars", "error", err)
		}
	}

	p, err := pipeline.New(pipeline.Config{
		EnableAnalysis:   cfg.Pipeline.EnableAnalysis,
		EnableExemplars:  cfg.Pipeline.EnableExemplars,
		EnableValidation: cfg.Pipeline.EnableValidation,
		RefineBudget:     cfg.Pipeline.RefineBudget,
		ExemplarK:        cfg.Pipeline.ExemplarK,
		ContextTurns:     cfg.Session.ContextTurns,
		Timeout:          cfg.Pipeline.Timeout,
		CallTimeout:      cfg.LLM.CallTimeout,
		Temperature:      cfg.LLM.Temperature,
		MaxOutputTokens:  cfg.LLM.MaxOutputTokens,
	}, pipeline.Deps{
		Store:     s.store,
		LLM:       s.llmClient,
		Grounder:  s.grounder,
		Exemplars: exemplars.NewSelector(s.corpus),
		Metrics:   s.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	s.pipeline = p
	return nil
}

// initChannel wires the Zalo integration when it is enabled.
func (s *service) initChannel(ctx context.Context) error {
	cfg := s.cfg.Channel
	if !cfg.Enabled {
		slog.Info("Channel integration disabled")
		return nil
	}

	switch s.cfg.Dedup.Backend {
	case "redis":
		client, err := s.redisClient(ctx, s.cfg.Dedup.RedisAddr)
		if err != nil {
			return err
		}
		s.guard = dedup.NewRedisGuard(client, dedupKey, s.cfg.Dedup.MaxProcessed, s.cfg.Dedup.Horizon)
	default:
		s.guard = dedup.NewMemoryGuard(s.cfg.Dedup.MaxProcessed, s.cfg.Dedup.Horizon)
	}

	s.tokens = channel.NewFileTokenSource(cfg.TokenFile)
	if err := s.tokens.Load(); err != nil {
		slog.Warn("OA access token not loaded, replies will fail until the token file appears", "error", err)
	}
	s.zalo = channel.NewZaloClient(channel.ZaloConfig{
		SendURL:          cfg.SendURL,
		MaxMessageLength: cfg.MaxMessageLength,
		RatePerSecond:    cfg.RatePerSecond,
	}, s.tokens, s.metrics)

	s.adapter = channel.NewAdapter(channel.AdapterConfig{
		Guard:          s.guard,
		Answerer:       s.pipeline,
		Sender:         s.zalo,
		WelcomeMessage: cfg.WelcomeMessage,
		Metrics:        s.metrics,
	})

	switch cfg.Bus {
	case "redis":
		client, err := s.redisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		bus, err := channel.NewRedisBus(client, cfg.Stream, cfg.ConsumerGroup)
		if err != nil {
			return err
		}
		s.bus = bus
	default:
		s.bus = channel.NewMemoryBus(cfg.Stream)
	}
	s.adapter.SetDispatcher(s.bus)

	slog.Info("Channel integration enabled",
		"bus", cfg.Bus,
		"dedup", s.cfg.Dedup.Backend,
		"token_file_exists", s.tokens.Exists())
	return nil
}

// redisClient returns one shared client per address, pinging it on first
// use.
func (s *service) redisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if client, ok := s.redisClients[addr]; ok {
		return client, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	s.redisClients[addr] = client
	return client, nil
}

// initRouter creates the gin engine and registers the routes.
func (s *service) initRouter() {
	if s.cfg.Server.GinMode != "" {
		gin.SetMode(s.cfg.Server.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), otelgin.Middleware(ServiceName))

	deps := routes.Deps{
		Answerer:      s.pipeline,
		Store:         s.store,
		Examples:      s.corpus,
		Health:        s.health,
		SessionCookie: s.cfg.Server.SessionCookie,
		EnableMetrics: s.cfg.Telemetry.EnableMetrics,
	}
	// Interface fields stay nil unless the component exists.
	if s.searcher != nil {
		deps.Searcher = s.searcher
	}
	if s.adapter != nil {
		deps.Webhook = s.adapter
		deps.Delivery = s.zalo
	}
	routes.SetupRoutes(s.router, deps)
}

// health reports the current wiring for GET /health.
func (s *service) health() handlers.HealthStatus {
	pc := s.pipeline.Config()
	status := handlers.HealthStatus{
		Status:            "healthy",
		LLMBackend:        s.cfg.LLM.Backend,
		GeminiInitialized: s.gemini != nil,
		RetrievalBackend:  s.cfg.Retrieval.Backend,
		FileSearchStore:   s.cfg.Retrieval.FileSearchStore != "",
		ExamplesLoaded:    s.corpus.Len(),
		ChannelEnabled:    s.adapter != nil,
		SessionCount:      s.store.Len(),
		Stages: handlers.StageStatus{
			Analysis:     pc.EnableAnalysis,
			Exemplars:    pc.EnableExemplars,
			Validation:   pc.EnableValidation,
			RefineBudget: pc.RefineBudget,
		},
	}
	if s.tokens != nil {
		status.TokensFileExists = s.tokens.Exists()
	}
	return status
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var (
	_ Service                   = (*service)(nil)
	_ handlers.Answerer         = (*pipeline.Pipeline)(nil)
	_ handlers.WebhookAcceptor  = (*channel.Adapter)(nil)
	_ handlers.DeliveryClient   = (*channel.ZaloClient)(nil)
	_ handlers.ExampleCorpus    = (*exemplars.Corpus)(nil)
	_ handlers.DocumentSearcher = (*search.DocumentIndex)(nil)
)
