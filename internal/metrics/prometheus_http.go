package metrics

import (
	"context"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Push sends everything in g to a Prometheus Pushgateway under job, replacing
// the previous push for that job.
func Push(ctx context.Context, url, job string, g prom.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to push metrics").
			Later().
			WithContext("pushgateway", url).
			Build()
	}
	return nil
}
