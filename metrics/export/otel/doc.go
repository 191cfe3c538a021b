// Package otel binds engine counters to OpenTelemetry observable instruments.
// Callers own the MeterProvider; the exporter only registers a callback.
package otel
