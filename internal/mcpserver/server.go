package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/personacall/internal/config"
	"github.com/apresai/personacall/internal/observability"
	"github.com/apresai/personacall/internal/pipeline"
)

// Server is the MCP server for simulated research calls.
type Server struct {
	cfg      *config.Config
	version  string
	mcp      *server.MCPServer
	runtime  *pipeline.Runtime
	handlers *Handlers
	log      *slog.Logger
}

// New loads secrets, wires the call runtime and registers the tools.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Server.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	// Provider clients read their keys at construction.
	if cfg.Server.SecretPrefix != "" {
		if err := loadSecrets(ctx, awsCfg, cfg.Server.SecretPrefix, logger); err != nil {
			logger.Warn("Failed to load secrets from Secrets Manager, falling back to env vars",
				"error", err)
		}
	}

	rt, err := pipeline.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	calls := NewStore(dynamodb.NewFromConfig(awsCfg), cfg.Server.Table)

	var storage *Storage
	if cfg.Server.Bucket != "" {
		storage = NewStorage(s3.NewFromConfig(awsCfg), cfg.Server.Bucket, cfg.Server.CDNBaseURL)
	} else if rt.Speaker != nil {
		logger.Warn("tts.provider is set but server.bucket is empty; speak is disabled")
	}

	handlers := NewHandlers(calls, rt.Personas, rt.Orchestrator, rt.Table, rt.Speaker, storage, logger)

	mcpServer := server.NewMCPServer(
		"personacall",
		version,
		server.WithToolCapabilities(true),
	)
	Register(mcpServer, handlers)

	return &Server{
		cfg:      cfg,
		version:  version,
		mcp:      mcpServer,
		runtime:  rt,
		handlers: handlers,
		log:      logger,
	}, nil
}

// Register adds every tool to s.
func Register(s *server.MCPServer, h *Handlers) {
	tools := ToolDefs()
	s.AddTool(tools[0], h.HandleCreateCall)
	s.AddTool(tools[1], h.HandleProcessUtterance)
	s.AddTool(tools[2], h.HandleGetCall)
	s.AddTool(tools[3], h.HandleEndCall)
	s.AddTool(tools[4], h.HandleClassifyLocation)
}

// Start serves MCP over streamable HTTP and Prometheus metrics until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	defer s.runtime.Close()

	metrics := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		s.log.Info("Serving metrics", "addr", metrics.Addr)
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server error", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.log.Info("Starting MCP server", "addr", addr, "version", s.version)

	httpServer := server.NewStreamableHTTPServer(s.mcp,
		server.WithStateLess(true), // call state lives in DynamoDB
	)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start(addr) }()

	select {
	case err := <-errCh:
		_ = metrics.Close()
		return err
	case <-ctx.Done():
		s.log.Info("Shutdown signal received, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// loadSecrets fetches API keys from Secrets Manager and sets them as env vars.
func loadSecrets(ctx context.Context, cfg aws.Config, prefix string, logger *slog.Logger) error {
	client := secretsmanager.NewFromConfig(cfg)

	secrets := map[string]string{
		"ANTHROPIC_API_KEY":  prefix + "ANTHROPIC_API_KEY",
		"GEMINI_API_KEY":     prefix + "GEMINI_API_KEY",
		"ELEVENLABS_API_KEY": prefix + "ELEVENLABS_API_KEY",
	}

	for envVar, secretID := range secrets {
		if os.Getenv(envVar) != "" {
			continue
		}

		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.Info("Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			os.Setenv(envVar, *result.SecretString)
			logger.Info("Loaded secret", "secret_id", secretID)
		}
	}

	return nil
}

// Run starts tracing when enabled, then serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) error {
	if cfg.Telemetry.Enabled {
		tp, err := observability.InitTracer(ctx, cfg.Telemetry.ServiceName, version, cfg.Telemetry.Environment)
		if err != nil {
			logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Error("Tracer shutdown error", "error", err)
				}
			}()
		}
	}

	srv, err := New(ctx, cfg, version, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return srv.Start(ctx)
}
