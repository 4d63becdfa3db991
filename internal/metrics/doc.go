// Package metrics records run and step metrics for sorrydb-sync.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	orch := update.New(cfg, repo, runner, update.WithRecorder(metrics.NoopRecorder{}))
//
// PrometheusRecorder registers its collectors on a caller-supplied registry.
// The daemon exposes that registry with HTTPHandler; a one-shot run, which
// exits before any scrape could happen, hands it to Push instead.
package metrics
