// Package server manages the lifecycle of the HTTP endpoints the toolkit
// serves (live stats streams, metrics): non-blocking start, graceful
// shutdown, and signal-driven termination for dashboard processes.
package server
