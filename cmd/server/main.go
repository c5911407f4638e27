// Package main implements the linedb server: a line-delimited,
// JSON-over-TCP document store. Clients name a database, send an insert,
// find, or delete request, and get back a status report plus any matched
// documents, all on one line per message.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                Server                    │
//	├─────────────────────────────────────────┤
//	│  TCP listener (one worker per conn)     │
//	│    registry  - name -> *Collection       │
//	│    handler   - Request -> Response       │
//	├─────────────────────────────────────────┤
//	│  Side HTTP listener                      │
//	│    GET /metrics - Prometheus exposition  │
//	└─────────────────────────────────────────┘
//
// Example usage:
//
//	./linedb-server 6380 mydb --folder ./data --metrics-addr :9090
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/linedb/internal/applog"
	"github.com/dreamware/linedb/internal/metrics"
	"github.com/dreamware/linedb/internal/registry"
	"github.com/dreamware/linedb/internal/server"
)

// logFatal is a variable so tests can intercept a fatal startup error
// without terminating the test process.
var logFatal = func(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

var (
	folder      string
	metricsAddr string
	logLevel    string
	logJSON     bool
)

// shutdownTimeout bounds how long the metrics HTTP listener is given to
// drain in-flight scrapes after shutdown is requested.
const shutdownTimeout = 5 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		logFatal("Error: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "linedb-server <port> <default_db_name>",
	Short: "linedb server: a line-delimited document database over TCP",
	Long: `linedb-server listens on a TCP port and speaks a line-delimited
JSON protocol: send {"database":...,"operation":"insert"|"find"|"delete",...}
and get back one line of {"status":...,"message":...,"count":...,"data":...}.

The named default database is loaded eagerly at startup; any other database
name referenced by a client is materialized lazily on first use.`,
	Args: cobra.ExactArgs(2),
	RunE: runServer,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&folder, "folder", "mydb", "storage folder for collection files")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address for the Prometheus HTTP listener; empty disables it")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit structured JSON log lines instead of console-formatted ones")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	applog.Init(applog.Config{Level: logLevel, JSON: logJSON})
}

func runServer(cmd *cobra.Command, args []string) error {
	port := args[0]
	defaultDB := args[1]

	log := applog.WithComponent("main")

	reg := registry.New(folder)

	// Eagerly materialize the default collection so its file is loaded
	// before the server accepts any traffic.
	if _, err := reg.Get(defaultDB); err != nil {
		return fmt.Errorf("loading default database %q: %w", defaultDB, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		startMetricsServer(ctx, metricsAddr)
	}

	log.Info().
		Str("addr", ":"+port).
		Str("default_db", defaultDB).
		Str("folder", folder).
		Str("metrics_addr", metricsAddr).
		Msg("starting linedb server")

	srv := server.New(reg)
	if err := srv.ListenAndServe(ctx, ":"+port); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// startMetricsServer runs the side Prometheus HTTP listener in its own
// goroutine, shutting it down when ctx is cancelled. A failure to bind is
// logged as a warning rather than aborting startup — metrics are an
// operational aid, not part of the wire protocol.
func startMetricsServer(ctx context.Context, addr string) {
	log := applog.WithComponent("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
}
