// Package instrument is the middleware side of fault injection.
//
// Instrumented code carries a Scope in its context.Context: the execution
// index of the call it is running under, a vector clock and the node name.
// Transport wraps an http.RoundTripper. For every outgoing call it derives
// the child execution index, reports an invocation event to the
// Coordinator and applies the directive it receives. Handler is the server
// side: it reads the propagated headers, reports request_received and
// installs a Scope for the handler's own outgoing calls.
//
// A directive carrying a fault is a command. The middleware applies it
// instead of proceeding and never retries a failed decision, since a retry
// would desynchronize occurrence counters from what the engine recorded.
package instrument
