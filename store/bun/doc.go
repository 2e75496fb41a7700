// Package bunstore is the relational archive backend, implemented with
// the Bun ORM on PostgreSQL. It persists alerts, dead letter entries,
// and metrics history for durable audit and reporting; it is not a
// queue backend.
//
// The caller owns the *bun.DB lifecycle; bunstore never closes it.
// Pass the db handle through the constructor:
//
//	import (
//	    "github.com/uptrace/bun"
//	    "github.com/uptrace/bun/dialect/pgdialect"
//	    "github.com/uptrace/bun/driver/pgdriver"
//	    bunstore "github.com/queueworks/governor/store/bun"
//	)
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	archive := bunstore.New(db)
//	if err := archive.Migrate(ctx); err != nil { ... }
package bunstore
