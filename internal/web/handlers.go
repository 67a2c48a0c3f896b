package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/datapull/fetchtozip/internal/export"
	"github.com/datapull/fetchtozip/internal/fetch"
	"github.com/datapull/fetchtozip/internal/logging"
	"github.com/datapull/fetchtozip/internal/table"
	"github.com/datapull/fetchtozip/internal/task"
)

// handleUpsertSpec adds or replaces one column spec, matched by name.
func (s *Server) handleUpsertSpec(w http.ResponseWriter, r *http.Request) {
	var spec table.ColumnSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.registry.Upsert(spec); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"count": s.registry.Len()})
}

// handleBulkUpsertSpecs replaces or appends a batch of specs atomically.
func (s *Server) handleBulkUpsertSpecs(w http.ResponseWriter, r *http.Request) {
	var specs []table.ColumnSpec
	if err := json.NewDecoder(r.Body).Decode(&specs); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body, expected an array of specs")
		return
	}

	if err := s.registry.BulkUpsert(specs); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"count": s.registry.Len()})
}

func (s *Server) handleClearSpecs(w http.ResponseWriter, r *http.Request) {
	s.registry.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"count": 0})
}

func (s *Server) handleListSpecs(w http.ResponseWriter, r *http.Request) {
	specs := s.registry.List()
	if specs == nil {
		specs = []table.ColumnSpec{}
	}
	writeJSON(w, http.StatusOK, specs)
}

// configureRequest is the processing configuration payload. Exactly one of
// db_url (paginated HTTP source) and db_config (SQL source) must be set.
type configureRequest struct {
	FileType   string    `json:"file_type"`
	TmpDir     string    `json:"tmp_dir"`
	RateLimit  int       `json:"rate_limit"`
	PageLimit  int       `json:"page_limit"`
	PageSize   int       `json:"page_size"`
	DBURL      string    `json:"db_url"`
	ZipFormats []string  `json:"zip_formats"`
	DB         *dbConfig `json:"db_config"`
}

// dbConfig describes a SQL source: a remote postgres connection string or an
// embedded sqlite file (db_file_path, ":memory:" allowed).
type dbConfig struct {
	Engine  string `json:"engine"`
	DSN     string `json:"dsn"`
	Path    string `json:"db_file_path"`
	Query   string `json:"sql_query"`
	InitSQL string `json:"initial_sql"`
}

// toTaskConfig validates the request and maps it onto a task configuration.
// An empty file_type falls back to the configured default format.
func (s *Server) toTaskConfig(req *configureRequest) (task.Config, error) {
	name := req.FileType
	if name == "" {
		name = s.cfg.Export.DefaultFormat
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		return task.Config{}, err
	}

	var zipInner []export.Format
	for _, name := range req.ZipFormats {
		f, err := export.ParseFormat(name)
		if err != nil {
			return task.Config{}, err
		}
		zipInner = append(zipInner, f)
	}

	var src fetch.Source
	switch {
	case req.DBURL != "" && req.DB != nil:
		return task.Config{}, fmt.Errorf("%w: db_url and db_config are mutually exclusive", fetch.ErrSourceDescriptor)
	case req.DBURL != "":
		src.HTTP = &fetch.HTTPSource{
			BaseURL:   req.DBURL,
			RateLimit: req.RateLimit,
			PageLimit: req.PageLimit,
			PageSize:  req.PageSize,
		}
	case req.DB != nil:
		dsn := req.DB.DSN
		if dsn == "" && req.DB.Engine == fetch.EnginePostgres {
			dsn = s.cfg.Fetch.DatabaseURL
		}
		src.Database = &fetch.DatabaseSource{
			Engine:  req.DB.Engine,
			DSN:     dsn,
			Path:    req.DB.Path,
			Query:   req.DB.Query,
			InitSQL: req.DB.InitSQL,
		}
	}

	cfg := task.Config{
		Format:   format,
		ZipInner: zipInner,
		WorkDir:  req.TmpDir,
		Source:   src,
	}
	if err := cfg.Source.Validate(); err != nil {
		return task.Config{}, err
	}
	return cfg, nil
}

// handleConfigure validates and stores the configuration consumed by the
// next start request.
func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg, err := s.toTaskConfig(&req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.store.Set(cfg)
	logging.FromContext(r.Context()).Info("processing configuration stored",
		"format", cfg.Format)
	writeJSON(w, http.StatusOK, map[string]string{"status": "configured"})
}

// handleStart launches a task from the stored configuration and the current
// registry snapshot. Returns the task id immediately.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	cfg, set := s.store.Current()
	if !set {
		writeError(w, r, http.StatusBadRequest, "no processing configuration set, call configure first")
		return
	}

	id, err := s.orchestrator.Start(cfg, s.registry.List())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
}

// statusResponse is the wire shape of a task snapshot.
type statusResponse struct {
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toStatusResponse(t task.Task) statusResponse {
	return statusResponse{
		TaskID:    t.ID,
		Status:    string(t.State),
		Progress:  t.Progress,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	snap, err := s.orchestrator.Status(id)
	if err != nil {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(snap))
}

// handleDownload streams the completed artifact. 404 for unknown ids, 409
// while the task has not completed.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	path, err := s.orchestrator.Result(id)
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, task.ErrNotReady):
		writeError(w, r, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	err := s.orchestrator.Cancel(id)
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, task.ErrTaskTerminal):
		writeError(w, r, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// handleTableData fetches a source and returns the rows as JSON directly,
// bypassing transform and export. Useful for previewing a source.
func (s *Server) handleTableData(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg, err := s.toTaskConfig(&req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tbl, err := s.fetcher.Fetch(r.Context(), cfg.Source)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"columns": tbl.Columns,
		"rows":    tbl.Rows,
	})
}
