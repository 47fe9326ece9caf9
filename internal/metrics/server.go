package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/health"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/logging"
)

// NewRegistry returns a registry holding the device collector and the
// process collectors.
func NewRegistry(ch *kernel.Channel, physicalOnly bool) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(ch, physicalOnly),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// NewMux routes /metrics to reg and, when checker is set, the health
// endpoints /healthz, /livez and /readyz to checker.
func NewMux(reg *prometheus.Registry, checker *health.Checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	if checker != nil {
		mux.Handle("/healthz", checker.Handler())
		mux.Handle("/livez", health.LivenessHandler())
		mux.Handle("/readyz", checker.ReadinessHandler())
	}
	return mux
}

// Serve exposes reg and checker on addr until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, checker *health.Checker) error {
	mux := NewMux(reg, checker)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "failed to listen on %s", addr)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log := logging.WithComponent("metrics")
	log.Info("exporter listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("exporter stopping")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, errors.KindUnavailable, "exporter failed")
	}
}
