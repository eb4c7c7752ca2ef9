package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/engine"
	"github.com/1F47E/geo-region-index/pkg/httpapi"
	"github.com/1F47E/geo-region-index/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reverse lookups over HTTP",
	Long: `Loads the boundary data and serves /api/reverse, /api/region/{code},
/api/stats, /healthz and /metrics. SIGHUP reloads the data without dropping
requests; SIGINT or SIGTERM shuts the server down gracefully.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		collector, err := metrics.NewCollector(nil)
		if err != nil {
			return err
		}

		e, err := loadEngine(ctx, engine.WithObserver(collector))
		if err != nil {
			return err
		}
		holder := engine.NewHolder(e)

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go reloadOnSignal(ctx, hup, holder, collector)

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		srv := &http.Server{
			Addr: addr,
			Handler: httpapi.NewRouter(holder, httpapi.Options{
				Logger:      zap.L(),
				Metrics:     collector,
				CORSOrigins: cfg.Server.CORSOrigins,
				RateLimit:   cfg.Server.RateLimit,
				RateBurst:   cfg.Server.RateBurst,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return eris.Wrap(err, "server listen")
		}
		zap.L().Info("starting server", zap.String("addr", ln.Addr().String()))
		return runServer(ctx, srv, ln)
	},
}

// runServer serves on ln until ctx is cancelled, then shuts down gracefully.
// It returns only after in-flight requests have finished or the shutdown
// timeout has passed.
func runServer(ctx context.Context, srv *http.Server, ln net.Listener) error {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	<-shutdownDone
	return nil
}

// reloadOnSignal rebuilds the engine on every signal and swaps it in. A
// failed reload keeps the current engine serving.
func reloadOnSignal(ctx context.Context, sig <-chan os.Signal, holder *engine.Holder, obs engine.Observer) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			zap.L().Info("reloading boundary data")
			e, err := loadEngine(ctx, engine.WithObserver(obs))
			if err != nil {
				zap.L().Error("reload failed, keeping current data", zap.Error(err))
				continue
			}
			holder.Swap(e)
			zap.L().Info("reload complete", zap.Int("regions", e.Hierarchy().Len()))
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
