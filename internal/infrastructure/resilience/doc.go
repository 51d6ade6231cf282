/*
Package resilience provides the circuit breaker used by clients of a worker
host.

A breaker guards one target, such as a host's HTTP API or its spawn
endpoint. After enough consecutive failures it opens and rejects calls with
ErrCircuitOpen until its cooldown expires, then lets a limited number of
probe calls through:

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[successes]-> Closed
	                                             |
	                                        [failure]
	                                             v
	                                            Open

Usage:

	breaker := resilience.New("host", resilience.DefaultSettings())
	workers, err := resilience.Execute(breaker, func() ([]host.Info, error) {
		return fetch(ctx)
	})
*/
package resilience
