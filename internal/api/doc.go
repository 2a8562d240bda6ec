// Package api exposes the operator HTTP surface: health, Prometheus
// metrics and read access to the funding run journal.
package api
