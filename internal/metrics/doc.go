// Package metrics records wspkg build metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics are
// optional everywhere. When a metrics_file is configured the CLI swaps in a
// PrometheusRecorder and, once the command finishes, writes its registry with
// WriteTextfile for pickup by the node_exporter textfile collector.
package metrics
