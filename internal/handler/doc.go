// Package handler is the remote-facing front end: it compiles registered
// programs into a per-identity artifact cache and dispatches executions of
// cached programs onto the execution engine without waiting for them.
//
// Register blocks for parse, compile and open; Execute returns as soon as the
// function has been handed to the engine. The remote entry points
// HandleRemoteRegister and HandleRemoteExecute report failures to the log and
// the diagnostic stream only; callers that need the error use Register and
// Execute.
package handler
