// Package telemetry wires the OpenTelemetry SDK for the toolkit's own
// traces and metrics. With telemetry disabled the global providers stay
// noop and nothing connects out.
package telemetry
