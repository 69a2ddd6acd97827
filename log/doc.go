// Package log provides the leveled logging interface used by ragpipe.
//
// The default implementation is backed by github.com/kataras/golog. A zap adapter is
// available for applications that already run a zap.Logger.
//
// # Log Levels
//
//   - LogLevelDebug: component start/finish inside pipeline runs
//   - LogLevelInfo: general operation (documents loaded, pipeline built)
//   - LogLevelWarn: tolerated problems, for example documents skipped by the
//     embedding retriever because they carry no embedding
//   - LogLevelError: failures
//   - LogLevelNone: disables all logging output
//
// # Example Usage
//
//	logger := log.NewDefaultLogger(log.LogLevelInfo)
//	logger.Info("documents loaded: %d", n)
//
//	// Replace the package-level logger used by components that were not
//	// given an explicit one.
//	log.SetDefaultLogger(logger)
//
// # zap Integration
//
//	zl, _ := zap.NewProduction()
//	logger := log.NewZapLogger(zl, log.LogLevelWarn)
//	defer logger.Sync()
//
// # Custom Loggers
//
// Any type with Debug, Info, Warn and Error methods taking a format string and
// arguments satisfies Logger.
package log
