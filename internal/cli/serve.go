package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/julianstephens/habitflow/internal/api"
	"github.com/julianstephens/habitflow/internal/logger"
	"github.com/julianstephens/habitflow/internal/metrics"
)

type ServeCmd struct {
	RateLimit float64       `help:"Requests per second allowed per client." default:"2"`
	Burst     int           `help:"Request burst allowed per client." default:"120"`
	NoMetrics bool          `help:"Do not serve /metrics."`
	Shutdown  time.Duration `help:"Graceful shutdown timeout." default:"30s"`
}

func (cmd *ServeCmd) Run(ctx *Context) error {
	sig, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ctx.Metrics = metrics.NewCollector(reg)

	s, err := ctx.Store(sig)
	if err != nil {
		return err
	}

	limiterCfg := api.DefaultRateLimiterConfig()
	limiterCfg.Rate = rate.Limit(cmd.RateLimit)
	limiterCfg.Burst = cmd.Burst
	limiter := api.NewRateLimiter(limiterCfg)
	defer limiter.Stop()

	deps := api.RouterDeps{
		Store:       s,
		Recorder:    ctx.Metrics,
		RateLimiter: limiter,
	}
	if !cmd.NoMetrics {
		deps.Gatherer = reg
	}
	if !s.LocalOnly() {
		sessions, err := ctx.Sessions(sig)
		if err != nil {
			return err
		}
		deps.Sessions = sessions
	}

	server := &http.Server{
		Addr:              ctx.Config.Listen,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("API server starting", "addr", server.Addr, "local_only", s.LocalOnly())
		errc <- server.ListenAndServe()
	}()
	ctx.printf("Serving habitflow API on http://%s\n", server.Addr)
	if deps.Sessions != nil {
		ctx.printf("Send 'Authorization: Bearer <token>'; 'habitflow whoami --token' prints the current one\n")
	}

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-sig.Done():
	}

	logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cmd.Shutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("API server stopped gracefully")
	return nil
}
