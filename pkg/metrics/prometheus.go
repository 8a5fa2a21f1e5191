package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/logger"
)

// PrometheusServer exposes a recorder's registry on its own port
type PrometheusServer struct {
	server *http.Server
	log    *logger.Logger
}

func NewPrometheusServer(port int, recorder *Recorder) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())

	return &PrometheusServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger.GetLogger("metrics.prometheus"),
	}
}

// Start blocks serving metrics until Stop is called
func (p *PrometheusServer) Start() error {
	p.log.Infof("Starting Prometheus metrics server on %s", p.server.Addr)
	if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (p *PrometheusServer) Stop(ctx context.Context) error {
	p.log.Info("Stopping Prometheus metrics server")
	return p.server.Shutdown(ctx)
}
