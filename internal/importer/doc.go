// Package importer loads rows from a columnar source into a SQL table.
//
// An import validates the target identifiers, opens a source.RowSource,
// renames columns through an optional column map and streams rows in
// batches. Destinations that implement BulkLoader receive each batch as
// PostgreSQL COPY text inside its own transaction with a statement timeout;
// other destinations receive ordinary multi-row INSERTs.
//
// # Failure semantics
//
// Every failure aborts the run and nothing is retried. Invalid paths and
// identifiers are rejected before the destination is touched. A failed
// COPY batch is rolled back, but batches committed earlier in the
// same run stay applied; restart with Request.Truncate to begin again.
//
// # Usage
//
//	im := importer.New(conn, importer.Config{BatchSize: 5000, CopyTimeoutSeconds: 300})
//	res, err := im.Import(ctx, importer.Request{
//	    Path:      "events.parquet",
//	    Table:     "analytics.events",
//	    ColumnMap: map[string]string{"ts": "created_at"},
//	})
package importer
