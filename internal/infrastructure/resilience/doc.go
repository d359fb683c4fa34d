/*
Package resilience provides a circuit breaker for calls to external tools.

# Overview

Environment detection shells out to conda, poetry and pipenv. When one of
them is broken on the host every call fails slowly, usually by running into
its timeout. A breaker per tool notices the repeated failures and rejects
further calls until the open period has elapsed.

# Usage

	tools := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Info("breaker", zap.String("tool", name), zap.Stringer("to", to))
		},
	})

	err := tools.Do(ctx, "poetry", func(ctx context.Context) error {
		out, err = runner.RunSync(ctx, req)
		return err
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open

A failure caused by the caller's context ending is not held against the
tool.
*/
package resilience
