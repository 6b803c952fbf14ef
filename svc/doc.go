// Package svc manages the lifecycle of a service process: a one-time
// readiness signal guarded by a startup deadline, and a graceful shutdown
// sequence that runs registered cleanup tasks exactly once before exiting.
//
// A Manager moves along two independent axes. Readiness goes from
// initializing to ready, once. Shutdown goes from running to shutting down,
// from either readiness state, and ends with the process exiting. Failing to
// declare readiness before the deadline is fatal: it triggers shutdown.
//
// Process-level signals are reached through the [Process] interface so that
// real signal registration stays at the outermost layer of an application.
package svc
