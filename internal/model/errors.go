// Package model holds the core data types and error vocabulary shared by
// every component of the coordination core: the Metadata Store, the
// Cluster View, the Placement Policy, the Heartbeat Monitor and the
// Replication Maintainer all speak these types instead of passing
// component-specific structs across boundaries.
package model

import "errors"

// Error kinds are transport-independent; the Coordinator API maps them
// onto HTTP status codes (see coordinatorapi), never the other way round.
var (
	ErrNotFound             = errors.New("not found")
	ErrExists               = errors.New("already exists")
	ErrParentMissing        = errors.New("parent directory missing")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrNodeUnavailable      = errors.New("node unavailable")
	ErrIntegrity            = errors.New("integrity check failed")
	ErrDurability           = errors.New("durability failure")
	ErrDataLoss             = errors.New("chunk has zero live replicas")
)
