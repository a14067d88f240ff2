package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

// version is set by the linker at build time.
var version = "dev"

// ServerName identifies this server to MCP clients and health checks.
const ServerName = "unhcr-mcp"

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// NewUNHCRMCPServer creates an MCP server with every statistics tool registered.
func NewUNHCRMCPServer(svc *StatsService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Title:   "UNHCR API Data",
		Version: version,
	}, nil)

	for _, spec := range toolSpecs {
		tool := &mcp.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: inputSchema(spec),
		}
		if spec.PopType {
			mcp.AddTool(server, tool, svc.demographicsHandler(spec))
		} else {
			mcp.AddTool(server, tool, svc.statsHandler(spec))
		}
	}

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// NewHTTPHandler serves the streamable MCP transport on path and a health
// check on GET /healthz.
func NewHTTPHandler(server *mcp.Server, path string, logger *slog.Logger) http.Handler {
	if path == "" {
		path = "/mcp"
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", healthHandler(logger))
	mux.Handle(path, mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	))
	return mux
}

// healthHandler reports liveness only; it never calls upstream.
func healthHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"server": ServerName,
		})
		if err != nil {
			logger.Warn("writing health response failed", "error", err)
		}
	}
}

// RunHTTP serves the MCP server over streamable HTTP on addr until ctx is
// cancelled, then shuts down gracefully.
func RunHTTP(ctx context.Context, server *mcp.Server, addr, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(server, path, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("serving MCP over HTTP", "addr", addr, "path", path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Shutdown gracefully when the context is cancelled or the listener fails.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
