package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"augplayground/pkg/pipeline"
)

//go:embed templates/index.html
var templateFS embed.FS

// catalogEntry is one transform offered by the UI
type catalogEntry struct {
	Key  string
	Name string
}

// indexData feeds templates/index.html
type indexData struct {
	Spatial      []catalogEntry
	Intensity    []catalogEntry
	Defaults     template.JS
	BIDSRoot     string
	BIDSHostPath string
}

func catalog(pass pipeline.Pass) []catalogEntry {
	var out []catalogEntry
	for _, k := range pipeline.Kinds() {
		if k.Pass() == pass {
			out = append(out, catalogEntry{Key: k.Key(), Name: k.Name()})
		}
	}
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	defaults, err := json.Marshal(pipeline.DefaultPayload())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := indexData{
		Spatial:      catalog(pipeline.Spatial),
		Intensity:    catalog(pipeline.Intensity),
		Defaults:     template.JS(defaults),
		BIDSRoot:     s.cfg.BIDS.Root,
		BIDSHostPath: s.cfg.BIDS.HostPath,
	}

	var buf bytes.Buffer
	if err := s.index.Execute(&buf, data); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
