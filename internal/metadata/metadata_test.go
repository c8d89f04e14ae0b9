package metadata

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dfscore/dfscore/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "metadata_db")
	store, err := Open(dbPath, 0, nil)
	if err != nil {
		t.Fatalf("failed to open metadata store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateFileRejectsDuplicateAndMissingParent(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.CreateFile("/a.bin", 3); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if _, err := store.CreateFile("/a.bin", 3); !errors.Is(err, model.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := store.CreateFile("/missing/b.bin", 3); !errors.Is(err, model.ErrParentMissing) {
		t.Fatalf("expected ErrParentMissing, got %v", err)
	}
}

func TestAddChunkAndDeleteFile(t *testing.T) {
	store := openTestStore(t)

	if err := store.CreateDirectory("/d"); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if _, err := store.CreateFile("/d/f", 2); err != nil {
		t.Fatalf("create file: %v", err)
	}

	chunk1 := model.ChunkInfo{ID: "chunk-1", Size: 100, Checksum: "abc", Replication: 2}
	chunk2 := model.ChunkInfo{ID: "chunk-2", Size: 200, Checksum: "def", Replication: 2}
	if err := store.AddChunk("/d/f", chunk1); err != nil {
		t.Fatalf("add chunk 1: %v", err)
	}
	if err := store.AddChunk("/d/f", chunk2); err != nil {
		t.Fatalf("add chunk 2: %v", err)
	}
	if err := store.AddChunk("/d/f", chunk1); err == nil {
		t.Fatalf("expected error appending duplicate chunk id")
	}

	file, err := store.GetFile("/d/f")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if len(file.Chunks) != 2 || file.Size != 300 {
		t.Fatalf("unexpected file state: %+v", file)
	}

	chunkIDs, err := store.DeleteFile("/d/f")
	if err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if len(chunkIDs) != 2 {
		t.Fatalf("expected 2 chunk ids, got %d", len(chunkIDs))
	}

	if _, err := store.GetFile("/d/f"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.GetChunk("chunk-1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected chunk metadata to be gone, got %v", err)
	}

	entries, err := store.ListDirectory("/d")
	if err != nil {
		t.Fatalf("list dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty directory after delete, got %+v", entries)
	}
}

func TestListDirectorySortedByBasename(t *testing.T) {
	store := openTestStore(t)

	for _, name := range []string{"/z.bin", "/a.bin", "/m.bin"} {
		if _, err := store.CreateFile(name, 1); err != nil {
			t.Fatalf("create file %s: %v", name, err)
		}
	}

	entries, err := store.ListDirectory("/")
	if err != nil {
		t.Fatalf("list directory: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"a.bin", "m.bin", "z.bin"}
	for i, e := range entries {
		if e.Name != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], e.Name)
		}
	}
}

func TestUpdateChunkReplicas(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.CreateFile("/f", 3); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := store.AddChunk("/f", model.ChunkInfo{ID: "c1", Size: 10, Checksum: "x", Replication: 3}); err != nil {
		t.Fatalf("add chunk: %v", err)
	}

	if err := store.UpdateChunkReplicas("c1", []string{"n1", "n2"}); err != nil {
		t.Fatalf("update replicas: %v", err)
	}
	chunk, err := store.GetChunk("c1")
	if err != nil {
		t.Fatalf("get chunk: %v", err)
	}
	if len(chunk.Replicas) != 2 {
		t.Fatalf("expected 2 replicas, got %v", chunk.Replicas)
	}
}

func TestEmptyFileRoundTrips(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.CreateFile("/empty.bin", 3); err != nil {
		t.Fatalf("create file: %v", err)
	}
	file, err := store.GetFile("/empty.bin")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if file.Size != 0 || len(file.Chunks) != 0 {
		t.Fatalf("expected empty file, got %+v", file)
	}
	if _, err := store.DeleteFile("/empty.bin"); err != nil {
		t.Fatalf("delete file: %v", err)
	}
}

func TestCrashRecoveryReopensSameState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "metadata_db")

	store, err := Open(dbPath, 0, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 3; i++ {
		path := "/f" + string(rune('0'+i))
		if _, err := store.CreateFile(path, 2); err != nil {
			t.Fatalf("create file: %v", err)
		}
		if err := store.AddChunk(path, model.ChunkInfo{ID: path + "-c0", Size: 5, Checksum: "x", Replication: 2}); err != nil {
			t.Fatalf("add chunk: %v", err)
		}
	}
	store.Close()

	reopened, err := Open(dbPath, 0, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.ListDirectory("/")
	if err != nil {
		t.Fatalf("list dir after reopen: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 files after reopen, got %d", len(entries))
	}
	if _, err := reopened.GetChunk("/f0-c0"); err != nil {
		t.Fatalf("expected chunk metadata to survive restart: %v", err)
	}
}

func TestAddChunkRejectsOversizedChunk(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "metadata_db")
	store, err := Open(dbPath, 100, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if _, err := store.CreateFile("/f", 1); err != nil {
		t.Fatalf("create file: %v", err)
	}
	err = store.AddChunk("/f", model.ChunkInfo{ID: "c1", Size: 101, Checksum: "x", Replication: 1})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for oversized chunk, got %v", err)
	}
	if err := store.AddChunk("/f", model.ChunkInfo{ID: "c2", Size: 100, Checksum: "x", Replication: 1}); err != nil {
		t.Fatalf("expected chunk at the limit to be accepted: %v", err)
	}
}

func TestInvalidArgumentRejections(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.CreateFile("relative/path", 3); !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for relative path, got %v", err)
	}
	if _, err := store.CreateFile("/ok", 0); !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for R=0, got %v", err)
	}
	if _, err := store.CreateFile("/ok", 9); !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for R=9, got %v", err)
	}
}
