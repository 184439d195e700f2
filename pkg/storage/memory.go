package storage

import (
	"fmt"
	"sync"
	"time"
)

// MemoryEngine is an in-memory Engine implementation.
//
// Data is lost when the engine is closed. It exists for tests and for
// ephemeral stores where durability is not needed; production callers should
// use BadgerEngine. Guarded by a single RWMutex: reads run concurrently,
// writes are serialized, and every public method is one critical section so
// callers never observe partial writes.
type MemoryEngine struct {
	mu         sync.RWMutex
	dimensions int
	nodes      map[NodeID]*Node
	edges      map[EdgeID]*Edge
	outgoing   map[NodeID][]EdgeID
	incoming   map[NodeID][]EdgeID
	accessLog  []*AccessEntry
	closed     bool
}

// NewMemoryEngine creates an in-memory engine with the given fixed embedding
// dimensionality.
func NewMemoryEngine(dimensions int) *MemoryEngine {
	return &MemoryEngine{
		dimensions: dimensions,
		nodes:      make(map[NodeID]*Node),
		edges:      make(map[EdgeID]*Edge),
		outgoing:   make(map[NodeID][]EdgeID),
		incoming:   make(map[NodeID][]EdgeID),
	}
}

func (m *MemoryEngine) validateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if len(node.Embedding) != m.dimensions {
		return fmt.Errorf("%w: got %d, store uses %d",
			ErrDimensionMismatch, len(node.Embedding), m.dimensions)
	}
	return nil
}

// CreateNode persists a new node.
func (m *MemoryEngine) CreateNode(node *Node) error {
	if err := m.validateNode(node); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.nodes[node.ID]; exists {
		return ErrAlreadyExists
	}

	m.nodes[node.ID] = node.Clone()
	return nil
}

// GetNode retrieves a node by id.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	node, ok := m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return node.Clone(), nil
}

// AllNodes returns a snapshot of every node.
func (m *MemoryEngine) AllNodes() ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	out := make([]*Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		out = append(out, node.Clone())
	}
	return out, nil
}

// NodeCount returns the number of stored nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodes)), nil
}

// CreateEdge persists a new edge after verifying both endpoints exist.
func (m *MemoryEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.edges[edge.ID]; exists {
		return ErrAlreadyExists
	}
	if _, ok := m.nodes[edge.SourceID]; !ok {
		return ErrInvalidEdge
	}
	if _, ok := m.nodes[edge.TargetID]; !ok {
		return ErrInvalidEdge
	}

	m.edges[edge.ID] = edge.Clone()
	m.outgoing[edge.SourceID] = append(m.outgoing[edge.SourceID], edge.ID)
	m.incoming[edge.TargetID] = append(m.incoming[edge.TargetID], edge.ID)
	return nil
}

// GetEdge retrieves an edge by id.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	edge, ok := m.edges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return edge.Clone(), nil
}

// AllEdges returns a snapshot of every edge.
func (m *MemoryEngine) AllEdges() ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	out := make([]*Edge, 0, len(m.edges))
	for _, edge := range m.edges {
		out = append(out, edge.Clone())
	}
	return out, nil
}

// EdgeCount returns the number of stored edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.edges)), nil
}

// OutgoingEdges returns edges starting at the node.
func (m *MemoryEngine) OutgoingEdges(id NodeID) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := m.outgoing[id]
	out := make([]*Edge, 0, len(ids))
	for _, edgeID := range ids {
		out = append(out, m.edges[edgeID].Clone())
	}
	return out, nil
}

// IncomingEdges returns edges ending at the node.
func (m *MemoryEngine) IncomingEdges(id NodeID) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := m.incoming[id]
	out := make([]*Edge, 0, len(ids))
	for _, edgeID := range ids {
		out = append(out, m.edges[edgeID].Clone())
	}
	return out, nil
}

// RecordAccess appends one log entry and increments the node's counter in
// the same critical section.
func (m *MemoryEngine) RecordAccess(id NodeID, typ AccessType, at time.Time) (int64, error) {
	if id == "" {
		return 0, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	node, ok := m.nodes[id]
	if !ok {
		return 0, ErrNotFound
	}

	node.AccessCount++
	m.accessLog = append(m.accessLog, &AccessEntry{
		NodeID:     id,
		AccessedAt: at,
		Type:       typ,
	})
	return node.AccessCount, nil
}

// AccessLog returns log entries in append order, optionally filtered by node.
func (m *MemoryEngine) AccessLog(id NodeID) ([]*AccessEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	out := make([]*AccessEntry, 0, len(m.accessLog))
	for _, entry := range m.accessLog {
		if id != "" && entry.NodeID != id {
			continue
		}
		e := *entry
		out = append(out, &e)
	}
	return out, nil
}

// Dimensions returns the fixed embedding dimensionality.
func (m *MemoryEngine) Dimensions() int {
	return m.dimensions
}

// Close discards all data. Idempotent.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		m.nodes = nil
		m.edges = nil
		m.outgoing = nil
		m.incoming = nil
		m.accessLog = nil
	}
	return nil
}
