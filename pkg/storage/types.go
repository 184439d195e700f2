// Package storage provides the storage engine interface and implementations
// for the mindgraph memory store.
//
// The store holds three record kinds: memory nodes carrying text content and
// a fixed-dimension embedding, directed relationship edges between nodes, and
// an append-only access log. The data model is deliberately create-and-read
// only. Nodes, edges, and log entries are never updated or deleted; the single
// permitted mutation is the per-node access counter, which RecordAccess bumps
// atomically together with the log append so the counter always equals the
// number of logged events for that node.
//
// Design Principles:
//   - Append-only records, no delete or content mutation
//   - Fixed embedding dimensionality per store instance
//   - Thread-safe implementations behind the Engine interface
//   - Testability through dependency injection
//
// Example Usage:
//
//	engine := storage.NewMemoryEngine(4)
//	defer engine.Close()
//
//	node := &storage.Node{
//		ID:        storage.NodeID("mem-1"),
//		Content:   "badger keeps the value log separate from the LSM tree",
//		Tags:      []string{"storage"},
//		Priority:  storage.PriorityNormal,
//		CreatedAt: time.Now(),
//		Embedding: []float32{0.1, 0.4, 0.2, 0.9},
//	}
//	engine.CreateNode(node)
package storage

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by storage engines.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidData       = errors.New("invalid data")
	ErrInvalidEdge       = errors.New("invalid edge: source or target node not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrStorageClosed     = errors.New("storage closed")
)

// NodeID is a strongly-typed unique identifier for memory nodes.
type NodeID string

// EdgeID is a strongly-typed unique identifier for relationship edges.
type EdgeID string

// Priority is the qualitative importance level of a memory node.
type Priority string

// Priority levels, most to least important.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// ParsePriority validates a priority string. The empty string maps to
// PriorityNormal; anything outside the known set is rejected.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return Priority(s), nil
	case "":
		return PriorityNormal, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidData, s)
	}
}

// AccessType distinguishes how a node was read.
type AccessType string

// Access types recorded in the log.
const (
	AccessSearch   AccessType = "search"
	AccessNavigate AccessType = "navigate"
)

// Node is a stored memory: immutable text content with a fixed-length
// embedding vector captured at creation time.
//
// Fields:
//   - ID: unique across all nodes in the store
//   - Content: non-empty memory text, immutable after creation
//   - Tags: free-form labels, order irrelevant
//   - Priority: qualitative importance (critical/high/normal/low)
//   - CreatedAt: set once at insert
//   - AccessCount: bumped by RecordAccess, never decreases
//   - Embedding: length equals the engine's fixed dimensionality
type Node struct {
	ID          NodeID
	Content     string
	Tags        []string
	Priority    Priority
	CreatedAt   time.Time
	AccessCount int64
	Embedding   []float32
}

// Clone returns a deep copy of the node so engine internals never leak
// mutable state to callers.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Tags != nil {
		out.Tags = append([]string(nil), n.Tags...)
	}
	if n.Embedding != nil {
		out.Embedding = append([]float32(nil), n.Embedding...)
	}
	return &out
}

// Edge is a directed, labeled relationship between two existing nodes.
//
// Relationship is an open vocabulary string stored verbatim; no closed set is
// enforced, so distinct callers may spell the same relation differently.
// SemanticStrength is derived from the endpoint embeddings when the edge is
// created and is never recomputed afterwards.
type Edge struct {
	ID               EdgeID
	SourceID         NodeID
	TargetID         NodeID
	Relationship     string
	CreatedAt        time.Time
	SemanticStrength float64
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	out := *e
	return &out
}

// AccessEntry is one append-only record of a node read event.
type AccessEntry struct {
	NodeID     NodeID
	AccessedAt time.Time
	Type       AccessType
}

// Engine is the storage contract shared by the in-memory and Badger
// implementations.
//
// There are intentionally no update or delete operations. RecordAccess is the
// only mutation: it appends one AccessEntry and increments the node's counter
// in the same transactional boundary, returning the new counter value.
//
// All methods are safe for concurrent use.
type Engine interface {
	// CreateNode persists a new node. Fails with ErrAlreadyExists when the
	// id is taken and ErrDimensionMismatch when the embedding length does
	// not match Dimensions().
	CreateNode(node *Node) error

	// GetNode retrieves a node by id. Fails with ErrNotFound when absent.
	GetNode(id NodeID) (*Node, error)

	// AllNodes returns every node in the store. Order is unspecified.
	AllNodes() ([]*Node, error)

	// NodeCount returns the number of stored nodes.
	NodeCount() (int64, error)

	// CreateEdge persists a new edge. Both endpoints must exist
	// (ErrInvalidEdge otherwise); the check and the write happen in one
	// transaction so a concurrent navigate never sees a dangling edge.
	CreateEdge(edge *Edge) error

	// GetEdge retrieves an edge by id. Fails with ErrNotFound when absent.
	GetEdge(id EdgeID) (*Edge, error)

	// AllEdges returns every edge in the store. Order is unspecified.
	AllEdges() ([]*Edge, error)

	// EdgeCount returns the number of stored edges.
	EdgeCount() (int64, error)

	// OutgoingEdges returns edges whose SourceID equals id.
	OutgoingEdges(id NodeID) ([]*Edge, error)

	// IncomingEdges returns edges whose TargetID equals id.
	IncomingEdges(id NodeID) ([]*Edge, error)

	// RecordAccess appends one log entry for the node and increments its
	// access counter atomically, returning the new counter value. Fails
	// with ErrNotFound when the node does not exist.
	RecordAccess(id NodeID, typ AccessType, at time.Time) (int64, error)

	// AccessLog returns log entries in append order. An empty id returns
	// the full log; otherwise only entries for that node.
	AccessLog(id NodeID) ([]*AccessEntry, error)

	// Dimensions returns the fixed embedding dimensionality of this store.
	Dimensions() int

	// Close releases engine resources. Further calls fail with
	// ErrStorageClosed.
	Close() error
}
