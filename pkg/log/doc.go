/*
Package log holds the zerolog root logger for the Zoidberg daemon.

Init wires the CLI's logging flags into one root logger:

	log.Init(log.Config{
		Verbose: verbose,          // -v: info -> debug
		JSON:    jsonOutput,       // --log-json
		Output:  logFile,          // --logfile, stdout otherwise
	})

Components derive their own child loggers once, at construction:

	logger := log.For("engine")
	logger.Info().Msg("Process loop started")

and attach recurring domain context with With or inline fields:

	sourceLogger := log.With("gerrit", "thirdparty")
	sourceLogger.Warn().Msg("Stream stopped")

	logger.Info().
		Str("action", "zoidberg.SyncBranch").
		Str("event_id", ev.ID).
		Msg("Running action")

The console format is the default; production deployments pass JSON
and ship the lines as-is.
*/
package log
