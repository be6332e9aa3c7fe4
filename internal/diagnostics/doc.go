// Package diagnostics samples process resources while churrera runs as a
// long-lived scheduler.
//
// A Monitor periodically records goroutines, heap, resident memory, open
// file descriptors and host load. Samples are kept in a bounded history,
// exported as Prometheus gauges and checked against configured thresholds;
// crossing a threshold or a steady growth trend is logged as a warning.
package diagnostics
