// Package datanodeclient defines the Replication Maintainer's and
// Storage Worker's view of a peer DataNode (spec.md §4.6's "DataNode
// replication interface") and an HTTP implementation of it.
//
// Grounded in the teacher's internal/transfer/client.go (HTTP client
// wrapping chunk transfer) and internal/peer/peer.go (peer registry
// vocabulary), generalized from whole-file transfer to single-chunk
// put/get/delete/exists/replicate.
package datanodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dfscore/dfscore/internal/model"
)

// Client is the capability set the Replication Maintainer and Storage
// Worker need against a remote DataNode. Kept as an interface (spec.md
// §9's "dynamic dispatch" note) so tests can substitute an in-memory
// fake instead of a live HTTP server.
type Client interface {
	Put(ctx context.Context, target model.TargetNode, chunkID string, data []byte) (checksum string, err error)
	Get(ctx context.Context, target model.TargetNode, chunkID string) ([]byte, error)
	Exists(ctx context.Context, target model.TargetNode, chunkID string) (bool, error)
	Delete(ctx context.Context, target model.TargetNode, chunkID string) error
	Replicate(ctx context.Context, source model.TargetNode, chunkID string, targets []model.TargetNode) error
}

// HTTPClient talks to peer DataNodes over the plain HTTP surface
// defined in spec.md §6's DataNode request surface table. Exists uses
// its own, shorter deadline (existsTimeout) layered on top of the
// caller's context — spec.md §5: "default 30s, 5s for existence
// checks" — since every other call shares the longer client timeout.
type HTTPClient struct {
	httpClient    *http.Client
	existsTimeout time.Duration
}

// NewHTTPClient builds an HTTPClient with the given per-request
// deadline (spec.md §5: default 30s) and a distinct, shorter deadline
// for existence checks.
func NewHTTPClient(timeout, existsTimeout time.Duration) *HTTPClient {
	if existsTimeout <= 0 {
		existsTimeout = 5 * time.Second
	}
	return &HTTPClient{httpClient: &http.Client{Timeout: timeout}, existsTimeout: existsTimeout}
}

func baseURL(t model.TargetNode) string {
	return fmt.Sprintf("http://%s:%d", t.Host, t.APIPort)
}

// Put implements the DataNode PUT /chunks/<id> call.
func (c *HTTPClient) Put(ctx context.Context, target model.TargetNode, chunkID string, data []byte) (string, error) {
	url := fmt.Sprintf("%s/chunks/%s", baseURL(target), chunkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: put to %s: %v", model.ErrNodeUnavailable, target.NodeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("put to %s failed: %s: %s", target.NodeID, resp.Status, string(body))
	}

	var decoded struct {
		Checksum string `json:"checksum"`
	}
	if err := decodeJSON(resp.Body, &decoded); err != nil {
		return "", err
	}
	return decoded.Checksum, nil
}

// Get implements the DataNode GET /chunks/<id> call.
func (c *HTTPClient) Get(ctx context.Context, target model.TargetNode, chunkID string) ([]byte, error) {
	url := fmt.Sprintf("%s/chunks/%s", baseURL(target), chunkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get from %s: %v", model.ErrNodeUnavailable, target.NodeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, model.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get from %s failed: %s", target.NodeID, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Exists implements the DataNode GET /chunks/<id>/exists call, bounded
// by existsTimeout regardless of the caller's own deadline.
func (c *HTTPClient) Exists(ctx context.Context, target model.TargetNode, chunkID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.existsTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/chunks/%s/exists", baseURL(target), chunkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: exists on %s: %v", model.ErrNodeUnavailable, target.NodeID, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Delete implements the DataNode DELETE /chunks/<id> call.
func (c *HTTPClient) Delete(ctx context.Context, target model.TargetNode, chunkID string) error {
	url := fmt.Sprintf("%s/chunks/%s", baseURL(target), chunkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: delete on %s: %v", model.ErrNodeUnavailable, target.NodeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete on %s failed: %s", target.NodeID, resp.Status)
	}
	return nil
}

// Replicate implements the DataNode POST /replicate call (spec.md §4.6):
// it commands source to push chunkID to each of targets itself, so
// replicated bytes travel peer-to-peer instead of through the caller.
func (c *HTTPClient) Replicate(ctx context.Context, source model.TargetNode, chunkID string, targets []model.TargetNode) error {
	body, err := json.Marshal(struct {
		ChunkID     string             `json:"chunk_id"`
		TargetNodes []model.TargetNode `json:"target_nodes"`
	}{ChunkID: chunkID, TargetNodes: targets})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/replicate", baseURL(source))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: replicate via %s: %v", model.ErrNodeUnavailable, source.NodeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("replicate via %s failed: %s", source.NodeID, resp.Status)
	}
	return nil
}
