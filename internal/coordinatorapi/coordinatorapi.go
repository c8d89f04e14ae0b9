// Package coordinatorapi implements the Coordinator API (spec.md §4.1's
// HTTP facade, wire surface in §6): the request/response boundary used
// by clients and DataNodes, including the error-kind-to-HTTP-status
// mapping.
//
// Grounded in the teacher's pack-sibling NebulousLabs-Sia's api/api.go
// (httprouter.Handle wiring, writeJSON/writeError helpers) generalized
// to this service's own request surface.
package coordinatorapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/dfscore/dfscore/internal/cluster"
	"github.com/dfscore/dfscore/internal/metadata"
	"github.com/dfscore/dfscore/internal/model"
	"github.com/dfscore/dfscore/internal/placement"
	"github.com/dfscore/dfscore/internal/replication"
)

// API wires the Metadata Store, Cluster View, Placement Policy and
// Replication Maintainer behind the Coordinator's HTTP surface.
type API struct {
	meta    *metadata.Store
	view    *cluster.View
	repl    *replication.Maintainer
	defaultReplication int
	log     *logrus.Logger

	allocMu     sync.Mutex
	allocations map[string][]model.TargetNode
}

// New builds a Coordinator API handler set.
func New(meta *metadata.Store, view *cluster.View, repl *replication.Maintainer, defaultReplication int, log *logrus.Logger) *API {
	if log == nil {
		log = logrus.New()
	}
	return &API{
		meta:               meta,
		view:               view,
		repl:               repl,
		defaultReplication: defaultReplication,
		log:                log,
		allocations:        make(map[string][]model.TargetNode),
	}
}

// Router builds the httprouter.Router for the Coordinator request
// surface table in spec.md §6.
func (a *API) Router() *httprouter.Router {
	r := httprouter.New()
	r.GET("/health", a.health)
	r.POST("/datanodes/register", a.registerDataNode)
	r.GET("/datanodes", a.listDataNodes)
	r.POST("/files", a.createFile)
	r.GET("/files/*path", a.getFile)
	r.DELETE("/files/*path", a.deleteFile)
	r.POST("/directories", a.createDirectory)
	r.GET("/directories/*path", a.listDirectory)
	r.POST("/chunks/allocate", a.allocateChunk)
	r.POST("/chunks/:id/complete", a.completeChunk)
	r.GET("/cluster/stats", a.clusterStats)
	r.POST("/heartbeat", a.heartbeat)
	return r
}

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiError{Message: err.Error()})
}

// statusFor implements spec.md's error-kind-to-HTTP mapping: client
// errors map to 4xx, insufficient capacity to 507, an unavailable node
// to 503, and everything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrParentMissing):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientCapacity):
		return http.StatusInsufficientStorage
	case errors.Is(err, model.ErrNodeUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	NodeID string `json:"node_id"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

func (a *API) registerDataNode(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidArgument)
		return
	}
	if req.NodeID == "" || req.Host == "" || req.Port == 0 {
		writeError(w, model.ErrInvalidArgument)
		return
	}
	node := a.view.Register(req.NodeID, req.Host, req.Port)
	writeJSON(w, http.StatusOK, node)
}

func (a *API) listDataNodes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.view.AllNodes())
}

type createFileRequest struct {
	Path string `json:"path"`
	R    int    `json:"R"`
}

func (a *API) createFile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidArgument)
		return
	}
	if req.R == 0 {
		req.R = a.defaultReplication
	}
	info, err := a.meta.CreateFile(req.Path, req.R)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

type fileResponse struct {
	model.FileInfo
	ChunkLocations map[string][]string `json:"chunk_locations"`
}

func (a *API) getFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	info, err := a.meta.GetFile(ps.ByName("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	locations := make(map[string][]string, len(info.Chunks))
	for _, chunkID := range info.Chunks {
		locations[chunkID] = a.view.Locations(chunkID)
	}
	writeJSON(w, http.StatusOK, fileResponse{FileInfo: info, ChunkLocations: locations})
}

func (a *API) deleteFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	chunkIDs, err := a.meta.DeleteFile(ps.ByName("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chunk_ids": chunkIDs})
}

type createDirectoryRequest struct {
	Path string `json:"path"`
}

func (a *API) createDirectory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidArgument)
		return
	}
	if err := a.meta.CreateDirectory(req.Path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": req.Path})
}

func (a *API) listDirectory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	entries, err := a.meta.ListDirectory(ps.ByName("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type allocateRequest struct {
	Size int64 `json:"size"`
	R    int   `json:"R"`
}

type allocateResponse struct {
	ChunkID   string            `json:"chunk_id"`
	Placement []model.NodeInfo `json:"placement"`
}

func (a *API) allocateChunk(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidArgument)
		return
	}
	if req.Size <= 0 {
		writeError(w, model.ErrInvalidArgument)
		return
	}
	if req.R == 0 {
		req.R = a.defaultReplication
	}

	targets := placement.Select(a.view.AliveNodes(), req.Size, req.R)
	if len(targets) == 0 {
		writeError(w, model.ErrInsufficientCapacity)
		return
	}

	chunkID := uuid.NewString()
	targetNodes := make([]model.TargetNode, len(targets))
	for i, n := range targets {
		targetNodes[i] = model.TargetNode{NodeID: n.ID, Host: n.Host, APIPort: n.Port}
	}
	a.allocMu.Lock()
	a.allocations[chunkID] = targetNodes
	a.allocMu.Unlock()

	writeJSON(w, http.StatusOK, allocateResponse{ChunkID: chunkID, Placement: targets})
}

type completeChunkRequest struct {
	FilePath string `json:"file_path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// completeChunk implements spec.md §6's literal `POST /chunks/<id>/complete`
// contract: the body carries only file_path/size/checksum, never the nodes
// written to. The node actually written is recovered from the placement
// this chunk's allocate_chunk call handed out; the chunk is then enqueued
// into the Replication Maintainer so it fans out to the rest of that
// original placement immediately instead of waiting for the next sweep.
func (a *API) completeChunk(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	chunkID := ps.ByName("id")
	var req completeChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidArgument)
		return
	}

	a.allocMu.Lock()
	targets := a.allocations[chunkID]
	delete(a.allocations, chunkID)
	a.allocMu.Unlock()

	chunk := model.ChunkInfo{
		ID:          chunkID,
		Size:        req.Size,
		Checksum:    req.Checksum,
		Replication: a.defaultReplication,
	}
	if len(targets) > 0 {
		chunk.Replication = len(targets)
	}
	if err := a.meta.AddChunk(req.FilePath, chunk); err != nil {
		writeError(w, err)
		return
	}

	if len(targets) > 0 {
		a.view.RecordReplica(chunkID, targets[0].NodeID)
	}
	if a.repl != nil {
		a.repl.Enqueue([]string{chunkID})
	}
	writeJSON(w, http.StatusOK, map[string]string{"chunk_id": chunkID})
}

func (a *API) clusterStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, a.view.Stats())
}

type heartbeatRequest struct {
	NodeID        string `json:"node_id"`
	AvailableSpace int64 `json:"available_space"`
	UsedSpace      int64 `json:"used_space"`
	ChunkCount     int   `json:"chunk_count"`
	CPUUsage       float64 `json:"cpu_usage"`
	MemoryUsage    float64 `json:"memory_usage"`
	Timestamp      int64 `json:"timestamp"`
}

// heartbeat implements spec.md §6's HTTP heartbeat ingress: accepts
// the heartbeat frame and replies with an acknowledgement frame.
func (a *API) heartbeat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidArgument)
		return
	}
	a.view.UpdateStats(req.NodeID, req.AvailableSpace, req.UsedSpace, req.ChunkCount)
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "timestamp": req.Timestamp})
}
