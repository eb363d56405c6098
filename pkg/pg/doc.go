// Package pg bootstraps the PostgreSQL layer behind the brief store: a
// pgx/v5 connection pool with startup retries, goose schema migrations, a
// health check closure, and error classification helpers.
//
// The claim protocol in pkg/brief depends on conditional UPDATEs executing
// atomically, which any single PostgreSQL node provides; this package only
// has to hand over a healthy pool. Connect retries with a linear backoff so
// runner processes restarted together do not hammer a recovering database.
//
// Migrate applies the SQL migrations from the configured directory before
// the service starts claiming occurrences, so a runner never observes a
// schema older than its own code.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    return err
//	}
package pg
