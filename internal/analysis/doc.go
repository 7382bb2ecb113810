// Package analysis loads the analysis configuration that tells the engine
// which faults apply to which call sites.
//
// A configuration is a list of rules. Each rule selects call sites by
// service, method and call type, and names the faults that may be injected
// there: exceptions, payload transformers and byzantine substitutes.
// Exploration policy knobs (max_iterations, suppress_combinations,
// data_nondeterminism, fail_if_fault_not_injected) sit at the top level.
//
// Configurations are written in YAML or CUE; Load picks the decoder from
// the file extension.
package analysis
