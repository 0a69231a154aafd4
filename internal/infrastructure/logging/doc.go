// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON lines for log shippers
//   - Development: colored console output with debug level
//
// Components take a *zap.Logger and name themselves:
//
//	logger := logging.FromConfig(cfg.Logging)
//	proxyLog := logger.Component("proxy")
//	proxyLog.Warn("origin fetch failed", zap.String("slug", slug), zap.Error(err))
package logging
