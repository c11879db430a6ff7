package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"augplayground/internal/apperror"
	"augplayground/pkg/hdf5conv"
	"augplayground/pkg/pipeline"
	"augplayground/pkg/store"
	"augplayground/pkg/visualization"
)

// multipartMemory is the part of a multipart form kept in memory before
// the standard library spills it to disk
const multipartMemory = 32 << 20

// volumeResponse describes a stored volume
type volumeResponse struct {
	VolumeID string `json:"volume_id"`
	Shape    [3]int `json:"shape"`
	Filename string `json:"filename,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"volumes": s.store.Len(),
	})
}

func (s *Server) handleBIDSTree(w http.ResponseWriter, r *http.Request) {
	listing, err := s.resolver.Tree(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleBIDSFile(w http.ResponseWriter, r *http.Request) {
	if err := s.resolver.CheckRoot(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !r.URL.Query().Has("path") {
		s.writeError(w, r, apperror.InvalidInput("Missing path."))
		return
	}
	target, err := s.resolver.File(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	f, err := os.Open(target)
	if err != nil {
		s.writeError(w, r, apperror.NotFound("File not found."))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("failed to stream file", slog.String("path", target), slog.String("error", err.Error()))
	}
}

func (s *Server) handleBIDSSelect(w http.ResponseWriter, r *http.Request) {
	if err := s.resolver.CheckRoot(); err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Path == "" {
		s.writeError(w, r, apperror.InvalidInput("Missing path."))
		return
	}
	AddLogField(r.Context(), "bids_path", body.Path)

	target, err := s.resolver.File(body.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	vol, err := s.loader.LoadFile(target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := filepath.Base(target)
	id := s.store.Put(&store.Entry{Volume: vol, Filename: name, Source: "bids"})
	s.metrics.VolumeLoaded("bids")
	AddLogField(r.Context(), "volume_id", id)

	writeJSON(w, http.StatusOK, volumeResponse{VolumeID: id, Shape: vol.Shape(), Filename: name})
}

// formFile opens the "file" part of a multipart upload, bounding the body
// by the configured upload limit
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, err
		}
		return nil, nil, apperror.InvalidInput("Expected a multipart upload.")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, apperror.InvalidInput("Missing file.")
	}
	return file, header, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()
	AddLogField(r.Context(), "filename", header.Filename)

	res, err := s.loader.LoadUpload(file, header.Filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := s.store.Put(&store.Entry{Volume: res.Volume, Filename: header.Filename, Source: "upload"})
	s.metrics.VolumeLoaded("upload")
	AddLogField(r.Context(), "volume_id", id)
	AddLogField(r.Context(), "ingest_stage", res.Stage)

	writeJSON(w, http.StatusOK, volumeResponse{VolumeID: id, Shape: res.Volume.Shape()})
}

func (s *Server) handleConvertH5(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()
	AddLogField(r.Context(), "filename", header.Filename)

	if header.Filename == "" {
		s.writeError(w, r, apperror.InvalidInput("Missing filename."))
		return
	}
	if !hdf5conv.HasSuffix(header.Filename) {
		s.writeError(w, r, apperror.InvalidInput("Only .h5 or .hdf5 supported."))
		return
	}
	data, err := s.loader.ReadUpload(file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.converter.ConvertBytes(data, s.cfg.Upload.TempDir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", hdf5conv.OutputName(header.Filename)))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// transformsOf returns payload[key] as an object, or an empty one
func transformsOf(payload map[string]any) map[string]any {
	if t, ok := payload["transforms"].(map[string]any); ok {
		return t
	}
	return map[string]any{}
}

// parseIndex accepts JSON numbers (truncated) and integer strings; an
// absent index is 0. Values beyond the int range saturate so the
// renderer clamps them to the first or last slice.
func parseIndex(raw any) (int, error) {
	switch t := raw.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		// out of range floats come back as an infinity with ErrRange
		if f, err := strconv.ParseFloat(t.String(), 64); !math.IsNaN(f) && (err == nil || errors.Is(err, strconv.ErrRange)) {
			return saturate(f), nil
		}
	case string:
		text := strings.TrimSpace(t)
		n, err := strconv.Atoi(text)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, strconv.ErrRange) {
			if strings.HasPrefix(text, "-") {
				return math.MinInt, nil
			}
			return math.MaxInt, nil
		}
	}
	return 0, apperror.InvalidInput("Invalid index: %v", raw)
}

// saturate truncates f to an int, pinning values outside the int range
// to its bounds
func saturate(f float64) int {
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func specNames(specs []pipeline.Spec) string {
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name()
	}
	return strings.Join(names, ",")
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := pipeline.DecodePayload(r.Body)
	if err != nil {
		s.writeError(w, r, apperror.InvalidInput("Invalid JSON body."))
		return
	}

	volumeID, _ := payload["volume_id"].(string)
	entry, err := s.store.Get(volumeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	AddLogField(r.Context(), "volume_id", volumeID)

	axisName := "axial"
	if raw, ok := payload["axis"]; ok && raw != nil {
		name, ok := raw.(string)
		if !ok {
			s.writeError(w, r, apperror.InvalidInput("Invalid axis: %v", raw))
			return
		}
		axisName = name
	}
	axis, err := visualization.ParseAxis(axisName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	index, err := parseIndex(payload["index"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	specs := pipeline.Build(transformsOf(payload))
	AddLogField(r.Context(), "axis", axis.String())
	AddLogField(r.Context(), "transforms", specNames(specs))

	var seed *int64
	if len(specs) > 0 {
		if seed, err = pipeline.ParseSeed(payload["seed"]); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	vol, err := s.executor.Apply(r.Context(), entry.Volume, specs, seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	png, err := visualization.NewViewer(vol).RenderPNG(axis, index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.ObservePreview(axis.String(), time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// exportResponse carries the canonical config and its source form. The
// snippet is repeated under "python" for older clients.
type exportResponse struct {
	Config  pipeline.Config `json:"config"`
	Snippet string          `json:"snippet"`
	Python  string          `json:"python"`
}

func newExportResponse(specs []pipeline.Spec) exportResponse {
	cfg := pipeline.Export(specs)
	snippet := pipeline.Snippet(cfg)
	return exportResponse{Config: cfg, Snippet: snippet, Python: snippet}
}

func (s *Server) handleExportConfig(w http.ResponseWriter, r *http.Request) {
	payload, err := pipeline.DecodePayload(r.Body)
	if err != nil {
		s.writeError(w, r, apperror.InvalidInput("Invalid JSON body."))
		return
	}
	specs := pipeline.Build(transformsOf(payload))
	AddLogField(r.Context(), "transforms", specNames(specs))
	writeJSON(w, http.StatusOK, newExportResponse(specs))
}

func (s *Server) handleImportSnippet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Snippet string `json:"snippet"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	specs, err := pipeline.ParseSnippet(body.Snippet)
	if err != nil {
		s.writeError(w, r, apperror.InvalidInput("Invalid snippet: %v", err))
		return
	}
	AddLogField(r.Context(), "transforms", specNames(specs))
	writeJSON(w, http.StatusOK, newExportResponse(specs))
}
