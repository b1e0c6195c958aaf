package importer

// Result describes a completed import run. It is produced once, only on
// success, and never modified afterwards.
type Result struct {
	SourcePath      string  `json:"source_path"`
	Table           string  `json:"table"`
	RowsImported    int64   `json:"rows_imported"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Fields returns the result as a flat map, keyed like its JSON form.
func (r Result) Fields() map[string]any {
	return map[string]any{
		"source_path":      r.SourcePath,
		"table":            r.Table,
		"rows_imported":    r.RowsImported,
		"duration_seconds": r.DurationSeconds,
	}
}
