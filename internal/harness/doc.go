// Package harness drives a fault-injection exploration of a test function.
//
// Explore repeatedly runs the test function, once per iteration the engine
// schedules, with a context that carries a root instrument.Scope and the
// coordinator. Each run is classified:
//
//   - passed: the test returned nil
//   - fault_observed: the error chain holds an instrument.FaultError, the
//     expected result of an injected exception
//   - failed: any other error, or a panic
//   - fault_not_injected: the engine scheduled faults the run never reached
//     (only with fail_if_fault_not_injected)
//
// Unexpected failures do not stop the exploration; they are collected in the
// Result and surfaced together by Result.Err. A decision timeout or a stopped
// engine aborts the exploration.
//
// # Usage
//
//	res, err := harness.Run(ctx, cfg, func(ctx context.Context) error {
//	    req, _ := http.NewRequestWithContext(ctx, http.MethodGet, cartURL+"/items", nil)
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return err
//	    }
//	    defer resp.Body.Close()
//	    return checkItems(resp)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := res.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// A failing iteration can be reproduced alone with Replay and the
// counterexample from Result.Counterexample.
package harness
