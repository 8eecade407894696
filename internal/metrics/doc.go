// Package metrics records run and stage metrics for docmake.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so nothing needs nil checks:
//
//	p := pipeline.New(...).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// docmake is a short-lived process, so the Prometheus registry is not served
// over HTTP. WriteTextfile dumps it in the text exposition format for the
// node_exporter textfile collector instead.
package metrics
