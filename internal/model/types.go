package model

import "time"

// FileInfo is the authoritative record for a file in the namespace.
// Mirrors spec.md §3 "File": chunks is ordered, index = position within
// the file. Every ID in Chunks must have a matching entry in the chunk
// table owned by the same Metadata Store.
type FileInfo struct {
	Path         string   `json:"path"`
	Size         int64    `json:"size"`
	Chunks       []string `json:"chunks"`
	CreatedAt    int64    `json:"created_at"`
	ModifiedAt   int64    `json:"modified_at"`
	Replication  int      `json:"replication_factor"`
}

// DirectoryInfo is the authoritative record for a directory.
type DirectoryInfo struct {
	Path       string          `json:"path"`
	CreatedAt  int64           `json:"created_at"`
	ModifiedAt int64           `json:"modified_at"`
	Children   map[string]bool `json:"children"`
}

// ChunkInfo is the authoritative record for a chunk. Replicas is a
// snapshot hint written by update_chunk_replicas; the Cluster View's
// chunk↔node index is the runtime source of truth (see DESIGN.md,
// internal/cluster, "Open Question").
type ChunkInfo struct {
	ID           string   `json:"id"`
	FileID       string   `json:"file_id"`
	Size         int64    `json:"size"`
	Checksum     string   `json:"checksum"`
	Replication  int      `json:"replication_factor"`
	Replicas     []string `json:"replicas"`
}

// DirEntry is one row of a list_directory response.
type DirEntry struct {
	Type       string `json:"type"` // "file" | "directory"
	Path       string `json:"path"`
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	ModifiedAt int64  `json:"modified_at"`
}

// NodeInfo is the Cluster View's record for a registered DataNode.
type NodeInfo struct {
	ID            string    `json:"id"`
	Host          string    `json:"host"`
	Port          int       `json:"port"`
	Available     int64     `json:"available_bytes"`
	Used          int64     `json:"used_bytes"`
	ChunkCount    int       `json:"chunk_count"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Alive         bool      `json:"alive"`
}

// ClusterStats summarizes the whole cluster, extended with the
// lost_chunks counter and usage_percentage carried over from the Python
// reference implementation (see SPEC_FULL.md "Supplemented features").
type ClusterStats struct {
	TotalNodes       int     `json:"total_nodes"`
	AliveNodes       int     `json:"alive_nodes"`
	DeadNodes        int     `json:"dead_nodes"`
	TotalSpace       int64   `json:"total_space"`
	UsedSpace        int64   `json:"used_space"`
	AvailableSpace   int64   `json:"available_space"`
	TotalChunks      int     `json:"total_chunks"`
	LostChunks       int     `json:"lost_chunks"`
	UsagePercentage  float64 `json:"usage_percentage"`
}

// TargetNode is the wire shape of a replication target: enough for a
// peer DataNode client to dial it directly (spec.md §6 /replicate body).
type TargetNode struct {
	NodeID  string `json:"node_id"`
	Host    string `json:"host"`
	APIPort int    `json:"api_port"`
}
