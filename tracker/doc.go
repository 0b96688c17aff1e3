// Package tracker records training runs and their metrics in an experiment
// tracking backend.
//
// Two backends implement the Client interface: HTTPClient posts runs to a
// remote tracking server, and LocalClient keeps an offline sqlite store
// under the results directory. NewFromEnv picks between them from
// TRAINFLOW_TRACKER_* environment variables, so training code never hard
// codes a backend.
package tracker
