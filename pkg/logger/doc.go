// Package logger builds the service's slog.Logger.
//
// It produces JSON logs by default for aggregation, with a text mode for
// local development, and supports context extractors that pull
// request-scoped values (worker id, tenant id) into every record emitted
// with a *Context logging call.
//
//	log := logger.New(
//	    logger.WithProduction("briefd"),
//	    logger.WithContextValue("tenant_id", tenantKey),
//	)
//	logger.SetAsDefault(log)
package logger
