// Command trainflow inspects a training deployment: which stats writers a
// run would resolve, which runs the local tracking store holds, and the
// schema migrations behind it.
//
// Usage:
//
//	trainflow writers --config run.yaml --manifest-dir ./plugins
//	trainflow runs --db results/run_history.db
//	trainflow migrate up --database-url trainflow.db --type sqlite
//	trainflow version
package main
