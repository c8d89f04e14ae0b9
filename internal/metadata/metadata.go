// Package metadata implements the coordination core's Metadata Store:
// the authoritative namespace of files, directories and chunks (spec.md
// §4.1). It generalizes the teacher's BadgerDB-backed key/value store
// (originally keyed by file name and chunk hash) into the full
// File/Directory/Chunk model, with all mutating operations serialized
// under a single exclusive lock and durably committed before returning.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/dfscore/dfscore/internal/model"
)

const (
	fileKeyPrefix  = "file:"
	dirKeyPrefix   = "dir:"
	chunkKeyPrefix = "chunk:"
)

// Store is the Metadata Store. A single sync.Mutex serializes every
// mutating operation (spec.md §4.1); Badger itself provides the
// durability guarantee that a returned-success mutation survives a
// crash, and that a write failure never leaves in-memory state observably
// mutated (its transactions are all-or-nothing against the value log).
type Store struct {
	mu  sync.Mutex
	db  *badger.DB
	log *logrus.Logger

	// maxChunkSize is the configured chunk-size limit (spec.md §3:
	// "declared size in bytes, ≤ chunk-size limit"). Zero means
	// unbounded, used by tests that don't care about the limit.
	maxChunkSize int64
}

// Open opens (or creates) the Badger-backed metadata store at dbPath and
// re-materializes the root directory "/" if it is missing, per spec.md
// §4.1 "Root / is re-materialized if missing." maxChunkSize bounds
// add_chunk (spec.md §3); pass 0 to leave it unbounded.
func Open(dbPath string, maxChunkSize int64, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: opening metadata store: %v", model.ErrDurability, err)
	}
	s := &Store{db: db, log: log, maxChunkSize: maxChunkSize}
	if err := s.ensureRoot(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureRoot() error {
	_, err := s.getDirectory("/")
	if err == nil {
		return nil
	}
	now := time.Now().Unix()
	root := model.DirectoryInfo{Path: "/", CreatedAt: now, ModifiedAt: now, Children: map[string]bool{}}
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, dirKeyPrefix+"/", root)
	})
}

func putJSON(txn *badger.Txn, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), b)
}

func getJSON(txn *badger.Txn, key string, v interface{}) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// CreateFile implements spec.md §4.1 create_file.
func (s *Store) CreateFile(path string, replication int) (model.FileInfo, error) {
	if err := model.ValidatePath(path); err != nil {
		return model.FileInfo{}, err
	}
	if replication < 1 || replication > 8 {
		return model.FileInfo{}, fmt.Errorf("%w: replication factor %d out of [1,8]", model.ErrInvalidArgument, replication)
	}
	if path == "/" {
		return model.FileInfo{}, fmt.Errorf("%w: root is a directory", model.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result model.FileInfo
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(fileKeyPrefix + path)); err == nil {
			return model.ErrExists
		}
		if _, err := txn.Get([]byte(dirKeyPrefix + path)); err == nil {
			return model.ErrExists
		}

		parentPath := model.ParentPath(path)
		var parent model.DirectoryInfo
		if err := getJSON(txn, dirKeyPrefix+parentPath, &parent); err != nil {
			return model.ErrParentMissing
		}

		now := time.Now().Unix()
		file := model.FileInfo{
			Path:        path,
			Size:        0,
			Chunks:      []string{},
			CreatedAt:   now,
			ModifiedAt:  now,
			Replication: replication,
		}
		if err := putJSON(txn, fileKeyPrefix+path, file); err != nil {
			return err
		}

		parent.Children[path] = true
		parent.ModifiedAt = now
		if err := putJSON(txn, dirKeyPrefix+parentPath, parent); err != nil {
			return err
		}

		result = file
		return nil
	})
	if err != nil {
		return model.FileInfo{}, wrapTxnErr(err)
	}
	return result, nil
}

// GetFile implements spec.md §4.1 get_file (read-only).
func (s *Store) GetFile(path string) (model.FileInfo, error) {
	var file model.FileInfo
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, fileKeyPrefix+path, &file)
	})
	if err != nil {
		return model.FileInfo{}, fmt.Errorf("%w: %s", model.ErrNotFound, path)
	}
	return file, nil
}

// DeleteFile implements spec.md §4.1 delete_file: it removes the file,
// unlinks it from its parent, removes every chunk metadata entry it
// owned and returns the chunk IDs so the caller can schedule DataNode
// deletion (best-effort w.r.t. the Cluster View, see cluster package).
func (s *Store) DeleteFile(path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chunkIDs []string
	err := s.db.Update(func(txn *badger.Txn) error {
		var file model.FileInfo
		if err := getJSON(txn, fileKeyPrefix+path, &file); err != nil {
			return model.ErrNotFound
		}
		chunkIDs = append([]string{}, file.Chunks...)

		if err := txn.Delete([]byte(fileKeyPrefix + path)); err != nil {
			return err
		}

		parentPath := model.ParentPath(path)
		var parent model.DirectoryInfo
		if err := getJSON(txn, dirKeyPrefix+parentPath, &parent); err == nil {
			delete(parent.Children, path)
			parent.ModifiedAt = time.Now().Unix()
			if err := putJSON(txn, dirKeyPrefix+parentPath, parent); err != nil {
				return err
			}
		}

		for _, chunkID := range chunkIDs {
			if err := txn.Delete([]byte(chunkKeyPrefix + chunkID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxnErr(err)
	}
	return chunkIDs, nil
}

// CreateDirectory implements spec.md §4.1 create_directory.
func (s *Store) CreateDirectory(path string) error {
	if err := model.ValidatePath(path); err != nil {
		return err
	}
	if path == "/" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return wrapTxnErr(s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(dirKeyPrefix + path)); err == nil {
			return model.ErrExists
		}
		if _, err := txn.Get([]byte(fileKeyPrefix + path)); err == nil {
			return model.ErrExists
		}

		parentPath := model.ParentPath(path)
		var parent model.DirectoryInfo
		if err := getJSON(txn, dirKeyPrefix+parentPath, &parent); err != nil {
			return model.ErrParentMissing
		}

		now := time.Now().Unix()
		dir := model.DirectoryInfo{Path: path, CreatedAt: now, ModifiedAt: now, Children: map[string]bool{}}
		if err := putJSON(txn, dirKeyPrefix+path, dir); err != nil {
			return err
		}

		parent.Children[path] = true
		parent.ModifiedAt = now
		return putJSON(txn, dirKeyPrefix+parentPath, parent)
	}))
}

func (s *Store) getDirectory(path string) (model.DirectoryInfo, error) {
	var dir model.DirectoryInfo
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, dirKeyPrefix+path, &dir)
	})
	return dir, err
}

// ListDirectory implements spec.md §4.1 list_directory: entries sorted
// by basename ascending.
func (s *Store) ListDirectory(path string) ([]model.DirEntry, error) {
	dir, err := s.getDirectory(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, path)
	}

	var entries []model.DirEntry
	err = s.db.View(func(txn *badger.Txn) error {
		for childPath := range dir.Children {
			var file model.FileInfo
			if err := getJSON(txn, fileKeyPrefix+childPath, &file); err == nil {
				entries = append(entries, model.DirEntry{
					Type: "file", Path: childPath, Name: model.BaseName(childPath),
					Size: file.Size, CreatedAt: file.CreatedAt, ModifiedAt: file.ModifiedAt,
				})
				continue
			}
			var sub model.DirectoryInfo
			if err := getJSON(txn, dirKeyPrefix+childPath, &sub); err == nil {
				entries = append(entries, model.DirEntry{
					Type: "directory", Path: childPath, Name: model.BaseName(childPath),
					CreatedAt: sub.CreatedAt, ModifiedAt: sub.ModifiedAt,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// AddChunk implements spec.md §4.1 add_chunk: appends chunkID to the
// file's ordered chunk list, records chunk metadata, and bumps the
// file's modification time. Appending the same chunk ID twice is an
// error.
func (s *Store) AddChunk(filePath string, chunk model.ChunkInfo) error {
	if s.maxChunkSize > 0 && chunk.Size > s.maxChunkSize {
		return fmt.Errorf("%w: chunk %s size %d exceeds limit %d", model.ErrInvalidArgument, chunk.ID, chunk.Size, s.maxChunkSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return wrapTxnErr(s.db.Update(func(txn *badger.Txn) error {
		var file model.FileInfo
		if err := getJSON(txn, fileKeyPrefix+filePath, &file); err != nil {
			return model.ErrNotFound
		}
		for _, id := range file.Chunks {
			if id == chunk.ID {
				return fmt.Errorf("%w: chunk %s already appended to %s", model.ErrInvalidArgument, chunk.ID, filePath)
			}
		}

		chunk.FileID = filePath
		file.Chunks = append(file.Chunks, chunk.ID)
		file.Size += chunk.Size
		file.ModifiedAt = time.Now().Unix()

		if err := putJSON(txn, fileKeyPrefix+filePath, file); err != nil {
			return err
		}
		return putJSON(txn, chunkKeyPrefix+chunk.ID, chunk)
	}))
}

// GetChunk implements spec.md §4.1 get_chunk.
func (s *Store) GetChunk(chunkID string) (model.ChunkInfo, error) {
	var chunk model.ChunkInfo
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, chunkKeyPrefix+chunkID, &chunk)
	})
	if err != nil {
		return model.ChunkInfo{}, fmt.Errorf("%w: %s", model.ErrNotFound, chunkID)
	}
	return chunk, nil
}

// UpdateChunkReplicas implements spec.md §4.1 update_chunk_replicas: it
// rewrites the snapshot-hint replica list carried in chunk metadata,
// separate from the Cluster View's authoritative index.
func (s *Store) UpdateChunkReplicas(chunkID string, replicas []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return wrapTxnErr(s.db.Update(func(txn *badger.Txn) error {
		var chunk model.ChunkInfo
		if err := getJSON(txn, chunkKeyPrefix+chunkID, &chunk); err != nil {
			return model.ErrNotFound
		}
		chunk.Replicas = append([]string{}, replicas...)
		return putJSON(txn, chunkKeyPrefix+chunkID, chunk)
	}))
}

func wrapTxnErr(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{model.ErrNotFound, model.ErrExists, model.ErrParentMissing, model.ErrInvalidArgument} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", model.ErrDurability, err)
}
