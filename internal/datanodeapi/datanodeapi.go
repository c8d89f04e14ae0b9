// Package datanodeapi implements the DataNode request surface (spec.md
// §6's DataNode request surface table): raw chunk put/get/delete/
// exists, chunk listing, and the replicate command, fronting a
// storageworker.Worker.
//
// Grounded the same way as coordinatorapi: httprouter.Handle wiring
// after NebulousLabs-Sia's api/api.go.
package datanodeapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/dfscore/dfscore/internal/model"
	"github.com/dfscore/dfscore/internal/storageworker"
)

// API fronts a single DataNode's Storage Worker with HTTP handlers.
type API struct {
	worker *storageworker.Worker
	log    *logrus.Logger
}

// New builds a DataNode API handler set.
func New(worker *storageworker.Worker, log *logrus.Logger) *API {
	if log == nil {
		log = logrus.New()
	}
	return &API{worker: worker, log: log}
}

// Router builds the httprouter.Router for the DataNode request
// surface.
func (a *API) Router() *httprouter.Router {
	r := httprouter.New()
	r.PUT("/chunks/:id", a.putChunk)
	r.GET("/chunks/:id", a.getChunk)
	r.DELETE("/chunks/:id", a.deleteChunk)
	r.GET("/chunks/:id/exists", a.existsChunk)
	r.GET("/chunks", a.listChunks)
	r.POST("/replicate", a.replicate)
	r.GET("/health", a.health)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	available, used, chunkCount, err := a.worker.Stats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"available":   available,
		"used":        used,
		"chunk_count": chunkCount,
	})
}

func (a *API) putChunk(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	chunkID := ps.ByName("id")
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	checksum, err := a.worker.Put(chunkID, data)
	if err != nil {
		a.log.WithError(err).WithField("chunk_id", chunkID).Error("put failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"size": len(data), "checksum": checksum})
}

func (a *API) getChunk(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	data, err := a.worker.Get(ps.ByName("id"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (a *API) deleteChunk(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := a.worker.Delete(ps.ByName("id")); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) existsChunk(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if a.worker.Exists(ps.ByName("id")) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (a *API) listChunks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ids, err := a.worker.ListChunks()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chunks": ids, "count": len(ids)})
}

type replicateRequest struct {
	ChunkID     string             `json:"chunk_id"`
	TargetNodes []model.TargetNode `json:"target_nodes"`
}

func (a *API) replicate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req replicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	a.worker.Replicate(req.ChunkID, req.TargetNodes)
	w.WriteHeader(http.StatusAccepted)
}
