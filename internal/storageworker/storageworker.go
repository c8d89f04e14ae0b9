// Package storageworker implements the Storage Worker (spec.md §4.6):
// the DataNode-side component that durably stores chunk bytes keyed by
// chunk ID, serves reads, and honours replication push commands.
//
// Grounded in the teacher's internal/storage/local.go LocalStorage,
// generalized from content-addressed (SHA-256 filename) storage to
// chunk-ID-addressed storage with an explicit .tmp+rename+fsync write
// path. Outbound replication pushes pass through internal/compressor
// (lz4): runJob compresses the chunk bytes unless they already look
// compressed, and pushOne decompresses them again before each peer put,
// so peers receive and store the plain bytes; no compressed bytes are
// sent over the network. The on-disk bytes and their checksum are never
// touched by compression.
package storageworker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dfscore/dfscore/internal/compressor"
	"github.com/dfscore/dfscore/internal/datanodeclient"
	"github.com/dfscore/dfscore/internal/model"
)

const replicateQueueCapacity = 1024
const maxPushAttempts = 3

// Worker is the Storage Worker for a single DataNode.
type Worker struct {
	root   string
	client datanodeclient.Client
	log    *logrus.Logger

	mu      sync.Mutex
	queue   []replicateJob
	queued  map[string]bool
	notify  chan struct{}
	results map[string][]TargetResult
}

// TargetResult records the outcome of one replication push to one
// target, reported per-target per spec.md §4.6 ("partial failure is
// reported per-target, not fatal to the command").
type TargetResult struct {
	NodeID string
	OK     bool
	Err    string
}

type replicateJob struct {
	chunkID string
	targets []model.TargetNode
}

// New builds a Storage Worker rooted at dir, which is created if
// absent.
func New(dir string, client datanodeclient.Client, log *logrus.Logger) (*Worker, error) {
	if log == nil {
		log = logrus.New()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage root: %v", model.ErrDurability, err)
	}
	return &Worker{
		root:    dir,
		client:  client,
		log:     log,
		queued:  make(map[string]bool),
		notify:  make(chan struct{}, 1),
		results: make(map[string][]TargetResult),
	}, nil
}

func (w *Worker) path(chunkID string) string {
	return filepath.Join(w.root, chunkID)
}

// Put implements spec.md §4.6 put: writes to a temp file, fsyncs once,
// then renames into place. Overwriting is idempotent — later write
// wins.
func (w *Worker) Put(chunkID string, data []byte) (string, error) {
	tmpPath := w.path(chunkID) + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: open temp file: %v", model.ErrDurability, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: write chunk: %v", model.ErrDurability, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: fsync chunk: %v", model.ErrDurability, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: close chunk: %v", model.ErrDurability, err)
	}
	if err := os.Rename(tmpPath, w.path(chunkID)); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: rename chunk into place: %v", model.ErrDurability, err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Get implements spec.md §4.6 get.
func (w *Worker) Get(chunkID string) ([]byte, error) {
	data, err := os.ReadFile(w.path(chunkID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%w: read chunk: %v", model.ErrDurability, err)
	}
	return data, nil
}

// Delete implements spec.md §4.6 delete.
func (w *Worker) Delete(chunkID string) error {
	if err := os.Remove(w.path(chunkID)); err != nil {
		if os.IsNotExist(err) {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: delete chunk: %v", model.ErrDurability, err)
	}
	return nil
}

// Exists implements spec.md §4.6 exists.
func (w *Worker) Exists(chunkID string) bool {
	_, err := os.Stat(w.path(chunkID))
	return err == nil
}

// ListChunks enumerates every chunk ID currently stored on disk. It
// backs the DataNode's GET /chunks listing; nothing in the coordinator
// feeds that listing into cluster.View.Rediscover.
func (w *Worker) ListChunks() ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("%w: list storage root: %v", model.ErrDurability, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) == ".tmp" {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

// Stats implements spec.md §4.6 stats: queried from the filesystem on
// demand.
func (w *Worker) Stats() (available, used int64, chunkCount int, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(w.root, &st); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: statfs: %v", model.ErrDurability, err)
	}
	available = int64(st.Bavail) * int64(st.Bsize)

	entries, rerr := os.ReadDir(w.root)
	if rerr != nil {
		return 0, 0, 0, fmt.Errorf("%w: read storage root: %v", model.ErrDurability, rerr)
	}
	var total int64
	count := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) == ".tmp" {
			continue
		}
		info, ierr := e.Info()
		if ierr != nil {
			continue
		}
		total += info.Size()
		count++
	}
	return available, total, count, nil
}

// Replicate implements spec.md §4.6 replicate: enqueues a push of
// local chunk bytes to each target's put. Replication runs on a single
// background worker per DataNode, FIFO, up to 3 attempts per target.
// Targets for a chunk that is already queued join its pending job.
func (w *Worker) Replicate(chunkID string, targets []model.TargetNode) {
	w.mu.Lock()
	if w.queued[chunkID] {
		for i := range w.queue {
			if w.queue[i].chunkID == chunkID {
				w.queue[i].targets = append(w.queue[i].targets, targets...)
				break
			}
		}
	} else {
		w.queued[chunkID] = true
		w.queue = append(w.queue, replicateJob{chunkID: chunkID, targets: targets})
	}
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// RunReplicationWorker drains the replication queue on a single
// background goroutine (spec.md §4.6: "Replication runs on a single
// background worker per DataNode, FIFO") until ctx is cancelled.
func (w *Worker) RunReplicationWorker(ctx context.Context) {
	for {
		job, ok := w.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-w.notify:
				continue
			case <-time.After(200 * time.Millisecond):
				continue
			}
		}
		w.runJob(ctx, job)
	}
}

func (w *Worker) dequeue() (replicateJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return replicateJob{}, false
	}
	job := w.queue[0]
	w.queue = w.queue[1:]
	delete(w.queued, job.chunkID)
	return job, true
}

func (w *Worker) runJob(ctx context.Context, job replicateJob) {
	data, err := w.Get(job.chunkID)
	if err != nil {
		w.recordResults(job.chunkID, job.targets, err)
		return
	}

	wireData, compressed := data, false
	if !compressor.ShouldSkipCompression(data) {
		if out, cerr := compressor.CompressChunk(data); cerr == nil {
			wireData, compressed = out, true
		}
	}

	var results []TargetResult
	for _, target := range job.targets {
		results = append(results, w.pushOne(ctx, target, job.chunkID, wireData, compressed))
	}
	w.setResults(job.chunkID, results)
}

func (w *Worker) pushOne(ctx context.Context, target model.TargetNode, chunkID string, wire []byte, compressed bool) TargetResult {
	var lastErr error
	for attempt := 0; attempt < maxPushAttempts; attempt++ {
		payload := wire
		if compressed {
			decompressed, derr := compressor.DecompressData(wire)
			if derr != nil {
				lastErr = derr
				continue
			}
			payload = decompressed
		}
		if _, err := w.client.Put(ctx, target, chunkID, payload); err != nil {
			lastErr = err
			continue
		}
		return TargetResult{NodeID: target.NodeID, OK: true}
	}
	w.log.WithFields(logrus.Fields{"chunk_id": chunkID, "target": target.NodeID, "error": lastErr}).Warn("chunk push to target failed after retries")
	return TargetResult{NodeID: target.NodeID, OK: false, Err: fmt.Sprint(lastErr)}
}

func (w *Worker) recordResults(chunkID string, targets []model.TargetNode, err error) {
	var results []TargetResult
	for _, t := range targets {
		results = append(results, TargetResult{NodeID: t.NodeID, OK: false, Err: err.Error()})
	}
	w.setResults(chunkID, results)
}

func (w *Worker) setResults(chunkID string, results []TargetResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.results[chunkID] = results
}

// LastResults returns the most recent per-target replication outcome
// for a chunk, if any push has run.
func (w *Worker) LastResults(chunkID string) []TargetResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]TargetResult(nil), w.results[chunkID]...)
}
