/*
Package log provides structured logging for the harness using zerolog.

A single global Logger is configured once via Init and components derive
scoped child loggers from it:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	dispatchLog := log.WithComponent("dispatch")
	dispatchLog.Info().Msg("leased work")

	itemLog := log.WithComputation("c1").With().Str("key", "k").Logger()
	itemLog.Error().Err(err).Msg("execution failed")

JSON output is used in production; console output (with a timestamp
prefix) is meant for local development. Debug level is verbose and should
not run in production; Info is the default.
*/
package log
