// Package metrics defines the Prometheus instruments for Bunny API calls,
// the retry coordinator, collection locking and the offload workflow.
//
// Instruments are registered on the default registry. Long-running callers
// expose them over HTTP; the CLI writes them to a textfile after each command.
package metrics
