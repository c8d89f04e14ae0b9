package datanodeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dfscore/dfscore/internal/datanodeclient"
	"github.com/dfscore/dfscore/internal/storageworker"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	w, err := storageworker.New(t.TempDir(), datanodeclient.NewFake(), nil)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	return New(w, nil)
}

func TestPutGetDeleteChunk(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/chunks/c1", bytes.NewReader([]byte("hello")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/chunks/c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/chunks/c1/exists")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected chunk to exist, status %d err %v", resp.StatusCode, err)
	}
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/chunks/c1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d err %v", resp.StatusCode, err)
	}
	resp.Body.Close()

	resp, _ = http.Get(srv.URL + "/chunks/c1/exists")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestGetMissingChunkReturnsNotFound(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/chunks/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListChunksAndHealth(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/chunks/c1", bytes.NewReader([]byte("x")))
	http.DefaultClient.Do(req)

	resp, err := http.Get(srv.URL + "/chunks")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var body struct {
		Chunks []string `json:"chunks"`
		Count  int      `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body.Count != 1 {
		t.Fatalf("expected 1 chunk, got %d", body.Count)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("health check failed: %v status %d", err, resp.StatusCode)
	}
	resp.Body.Close()
}

func TestReplicateAccepted(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/chunks/c1", bytes.NewReader([]byte("x")))
	http.DefaultClient.Do(req)

	body, _ := json.Marshal(replicateRequest{ChunkID: "c1"})
	resp, err := http.Post(srv.URL+"/replicate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
}
