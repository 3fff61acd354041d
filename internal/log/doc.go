// Package log builds the slog loggers used by newscrawl.
//
// All loggers go through SecureHandler, which redacts cookies, auth headers,
// tokens and proxy credentials so that verbose request logs can be shared:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetching", "url", u, "cookie", rule.CookieHeader()) // cookie=***REDACTED***
//	slog.SetDefault(logger)
package log
