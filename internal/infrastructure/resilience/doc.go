/*
Package resilience provides the circuit breaker placed in front of the completion
provider.

The retry loop in the completion client handles a single request that hits a
transient failure. The breaker handles the case where the provider is down for
everyone: after enough consecutive transient failures it opens and calls fail
immediately until the cooldown elapses.

# Usage

	breaker := resilience.New("completion", resilience.Settings{
		Cooldown: 30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || !errs.KindOf(err).IsTransient()
		},
	})

	err := breaker.Do(func() error {
		return client.call(ctx)
	})

# States

	Closed --[ReadyToTrip]-> Open --[Cooldown]-> Half-Open --[probes succeed]-> Closed
	                                                 |
	                                             [failure]
	                                                 v
	                                               Open
*/
package resilience
