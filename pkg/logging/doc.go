// Package logging provides subsystem-tagged structured logging for jobsmith.
//
// The package is a thin layer over Go's standard slog package. Every entry
// carries a subsystem attribute so output from the loader, expander,
// reconciler and publisher can be told apart and filtered.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Loader", "Loaded %d templates from %s", n, path)
//	logging.Debug("Expander", "Expanding project %s", project)
//	logging.Warn("Reconciler", "Remote job %s is not managed by jobsmith", name)
//	logging.Error("Publisher", err, "Failed to delete %s", name)
//
// # Subsystems
//
//   - Config: tool configuration loading
//   - Loader: job-configuration source parsing
//   - Expander: matrix expansion
//   - Validator: schema validation
//   - Reconciler: plan computation
//   - Publisher: remote apply
//   - Remote/<backend>: orchestrator API clients
//   - Watch: source change detection
//
// Before InitForCLI is called only WARN and ERROR entries are written, to
// stderr. This keeps library use and tests quiet.
//
// InitForCLI also installs the handler as the controller-runtime logger, so
// the Kubernetes backend logs through the same sink.
package logging
