// Package server exposes an engine over HTTP so middleware running in other
// processes can take part in an exploration.
//
// Inbound events are validated against an embedded JSON schema before they
// reach the engine. Engine RuntimeErrors are returned as JSON bodies with a
// status code per error code; instrument.RemoteCoordinator decodes them
// back into *engine.RuntimeError.
package server
