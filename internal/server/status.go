package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hyperjump/resumatch/internal/storage"
)

// Status describes record counts, the active backends and data sizes.
type Status struct {
	storage.Stats
	EmbeddingBackend string              `json:"embedding_backend"`
	StorageDriver    string              `json:"storage_driver"`
	DiskUsage        []storage.PathUsage `json:"disk_usage"`
	DiskUsageBytes   int64               `json:"disk_usage_bytes"`
}

// CollectStatus gathers a Status from store. Disk usage is left empty when a
// data path cannot be read.
func CollectStatus(ctx context.Context, store storage.Storage, backend, driver string, paths map[string]string) (*Status, error) {
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	st := &Status{Stats: stats, EmbeddingBackend: backend, StorageDriver: driver, DiskUsage: []storage.PathUsage{}}
	if usage, total, err := storage.DiskUsage(paths); err == nil {
		st.DiskUsage = usage
		st.DiskUsageBytes = total
	}
	return st, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := CollectStatus(r.Context(), s.deps.Store, s.deps.Evaluations.Backend(), s.deps.Driver, s.deps.DataPaths)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
