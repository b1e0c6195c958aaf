package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/pqload/internal/importer"
	"github.com/JonMunkholm/pqload/internal/logging"
)

// maxRequestBody bounds the JSON body of an import request.
const maxRequestBody = 1 << 20

// ImportRequest is the body of POST /api/imports.
type ImportRequest struct {
	Path               string            `json:"path"`
	Table              string            `json:"table"`
	ColumnMap          map[string]string `json:"column_map,omitempty"`
	Truncate           bool              `json:"truncate,omitempty"`
	BatchSize          int               `json:"batch_size,omitempty"`
	CopyTimeoutSeconds int               `json:"copy_timeout_seconds,omitempty"`
}

// errOutsideBaseDir is returned for paths that escape IMPORT_BASE_DIR.
var errOutsideBaseDir = errors.New("path is outside the import directory")

// handleImport runs one import synchronously and returns its Result.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req ImportRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" || req.Table == "" {
		writeError(w, r, http.StatusBadRequest, "path and table are required")
		return
	}
	if req.BatchSize < 0 || req.CopyTimeoutSeconds < 0 {
		writeError(w, r, http.StatusBadRequest, "batch_size and copy_timeout_seconds must not be negative")
		return
	}

	path, err := resolvePath(s.cfg.Import.BaseDir, req.Path)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if err := s.limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	logging.FromContext(ctx).Info("import requested",
		"path", path,
		"table", req.Table,
		"truncate", req.Truncate,
	)

	res, err := s.importerFor(req.BatchSize, req.CopyTimeoutSeconds).Import(ctx, importer.Request{
		Path:      path,
		Table:     req.Table,
		ColumnMap: req.ColumnMap,
		Truncate:  req.Truncate,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleImportStatus returns the current state of the import limiter.
// Used for monitoring and to check if the server can accept more imports.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}

// handleHealth reports liveness, and destination reachability when the
// destination can be pinged.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.conn.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			logging.FromContext(ctx).Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolvePath confines path to baseDir when one is configured. Relative
// paths are taken relative to baseDir. Symlinks are followed, so a link
// inside baseDir may only point at a file that is also inside it.
func resolvePath(baseDir, path string) (string, error) {
	if baseDir == "" {
		return filepath.Clean(path), nil
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	if !within(base, path) {
		return "", errOutsideBaseDir
	}

	// A path that does not exist is left for the importer to report.
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path, nil
	}
	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return "", err
	}
	if !within(realBase, resolved) {
		return "", errOutsideBaseDir
	}
	return path, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
