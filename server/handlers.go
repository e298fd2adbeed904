package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/sevigo/gwdata/charset"
	"github.com/sevigo/gwdata/datasource"
	"github.com/sevigo/gwdata/preview"
	"github.com/sevigo/gwdata/schema"
)

const maxRequestBody = 64 * 1024

type downloadRequest struct {
	URL      string `json:"url"`
	Encoding string `json:"encoding"`
	Commit   bool   `json:"commit"`
}

type downloadResponse struct {
	State     schema.DownloadState `json:"state"`
	Name      string               `json:"name,omitempty"`
	Rows      int                  `json:"rows"`
	Committed *schema.Snapshot     `json:"committed,omitempty"`
}

type temporaryResponse struct {
	Name    string                `json:"name"`
	Dataset schema.TabularDataset `json:"dataset"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type committedSignal struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Rows        int       `json:"rows"`
	Fields      int       `json:"fields"`
	CommittedAt time.Time `json:"committedAt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCharsets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, charset.Options())
}

func (s *Server) handleResource(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"url": s.remote.ResourceURL()})
}

func (s *Server) handleDownloadState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.remote.State().Get())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	var committed *schema.Snapshot
	err := s.remote.Download(r.Context(), req.URL, req.Encoding, commitOptions(req.Commit, &committed)...)
	s.writeDownloadResult(w, committed, err)
}

func (s *Server) handleDownloadResource(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var committed *schema.Snapshot
	err := s.remote.LoadResource(r.Context(), req.Encoding, commitOptions(req.Commit, &committed)...)
	if errors.Is(err, datasource.ErrNoResourceURL) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeDownloadResult(w, committed, err)
}

// commitOptions commits inside the download attempt when asked to and
// captures the snapshot of any commit the attempt makes.
func commitOptions(commit bool, committed **schema.Snapshot) []datasource.DownloadOption {
	return []datasource.DownloadOption{
		datasource.WithCommit(commit),
		datasource.OnCommit(func(snapshot schema.Snapshot) {
			*committed = &snapshot
		}),
	}
}

func (s *Server) writeDownloadResult(w http.ResponseWriter, committed *schema.Snapshot, err error) {
	state := s.remote.State().Get()
	if errors.Is(err, datasource.ErrDownloadInProgress) {
		writeJSON(w, http.StatusConflict, downloadResponse{State: state})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, downloadResponse{State: state})
		return
	}

	resp := downloadResponse{
		State:     state,
		Name:      s.remote.Staging().TemporaryName(),
		Rows:      s.remote.Staging().Temporary().Len(),
		Committed: committed,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTemporary(w http.ResponseWriter, _ *http.Request) {
	staging := s.remote.Staging()
	writeJSON(w, http.StatusOK, temporaryResponse{
		Name:    staging.TemporaryName(),
		Dataset: staging.Temporary(),
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.remote.Staging().UpdateTempName(strings.TrimSpace(req.Name))
	writeJSON(w, http.StatusOK, map[string]string{"name": s.remote.Staging().TemporaryName()})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ds := s.remote.Staging().Temporary()
	if !preview.Ready(ds) {
		writeError(w, http.StatusConflict, "no dataset staged")
		return
	}

	opts := preview.Options{Limit: preview.DefaultLimit, ShowTypes: r.URL.Query().Has("types")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		opts.Limit = n
	}

	out, err := preview.HTML(ds, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleCommit(w http.ResponseWriter, _ *http.Request) {
	if !s.remote.CanCommit() {
		writeError(w, http.StatusConflict, "nothing to commit")
		return
	}
	writeJSON(w, http.StatusOK, s.remote.Commit())
}

func (s *Server) handleCommitted(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.remote.Staging().Committed()
	if snapshot.IsZero() {
		writeError(w, http.StatusNotFound, "nothing committed yet")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleCommitEvents streams the committed snapshot: once on connect and again
// after every commit.
func (s *Server) handleCommitEvents(w http.ResponseWriter, r *http.Request) {
	updates := s.notifier.subscribe()
	defer s.notifier.unsubscribe(updates)

	sse := datastar.NewSSE(w, r)

	if err := s.sendCommitted(sse); err != nil {
		_ = sse.ConsoleError(err)
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			if err := s.sendCommitted(sse); err != nil {
				s.logger.Debug("commit event not delivered", "error", err)
				return
			}
		}
	}
}

func (s *Server) sendCommitted(sse *datastar.ServerSentEventGenerator) error {
	snapshot := s.remote.Staging().Committed()
	if snapshot.IsZero() {
		return nil
	}

	if err := sse.MarshalAndPatchSignals(map[string]any{
		"committed": committedSignal{
			ID:          snapshot.ID,
			Name:        snapshot.Name,
			Rows:        snapshot.Dataset.Len(),
			Fields:      len(snapshot.Dataset.Fields),
			CommittedAt: snapshot.CommittedAt,
		},
	}); err != nil {
		return err
	}

	body, err := preview.HTML(snapshot.Dataset, preview.Options{Limit: preview.DefaultLimit})
	if err != nil {
		return err
	}
	return sse.PatchElements(`<div id="committed-preview">` + body + `</div>`)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
