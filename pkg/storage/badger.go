package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Single-byte prefixes keep keys short and prefix scans cheap.
const (
	prefixNode      = byte(0x01) // 0x01 + nodeID         -> JSON(nodeRecord)
	prefixEdge      = byte(0x02) // 0x02 + edgeID         -> JSON(edgeRecord)
	prefixOutgoing  = byte(0x03) // 0x03 + nodeID + 0x00 + edgeID -> empty
	prefixIncoming  = byte(0x04) // 0x04 + nodeID + 0x00 + edgeID -> empty
	prefixAccessLog = byte(0x05) // 0x05 + seq (8B BE)    -> JSON(accessRecord)
	prefixEmbedding = byte(0x06) // 0x06 + nodeID         -> raw float32 LE blob
	prefixMeta      = byte(0x07) // 0x07 + name           -> engine metadata
)

var (
	metaDimensionsKey = append([]byte{prefixMeta}, []byte("dimensions")...)
	accessSeqKey      = append([]byte{prefixMeta}, []byte("access-seq")...)
)

// BadgerEngine is the durable Engine implementation backed by BadgerDB.
//
// The whole store lives under a single directory. Every public operation is
// one Badger transaction, which gives the engine its all-or-nothing
// guarantee: a failed edge write leaves no index entries behind, and a
// concurrent reader never observes a node without its embedding blob.
//
// Key Structure:
//   - Nodes:      0x01 + nodeID -> JSON node record (without embedding)
//   - Edges:      0x02 + edgeID -> JSON edge record
//   - Outgoing:   0x03 + nodeID + 0x00 + edgeID -> empty
//   - Incoming:   0x04 + nodeID + 0x00 + edgeID -> empty
//   - Access log: 0x05 + sequence (8 bytes, big endian) -> JSON entry
//   - Embeddings: 0x06 + nodeID -> IEEE-754 float32 little-endian blob
//   - Metadata:   0x07 + name -> engine metadata (fixed dimensionality)
//
// The embedding dimensionality is written to the metadata key when the store
// is created and verified on every subsequent open; reopening a store with a
// different dimensionality fails rather than silently mixing vector sizes.
type BadgerEngine struct {
	db         *badger.DB
	seq        *badger.Sequence
	dimensions int
	mu         sync.RWMutex // guards closed
	closed     bool
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for data files. Required unless InMemory.
	DataDir string

	// Dimensions is the fixed embedding vector length. Required for new
	// stores; for existing stores it must match the persisted value
	// (zero means adopt whatever the store was created with).
	Dimensions int

	// InMemory runs BadgerDB without disk persistence. Useful for tests.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool
}

// NewBadgerEngine opens (or creates) a durable store at dataDir with the
// given embedding dimensionality.
func NewBadgerEngine(dataDir string, dimensions int) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		DataDir:    dataDir,
		Dimensions: dimensions,
	})
}

// NewBadgerEngineWithOptions opens a store with custom configuration.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	// Quiet logger plus reduced buffers; the store holds short memories,
	// not bulk data, so the Badger defaults are oversized.
	badgerOpts = badgerOpts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	dims, err := initDimensions(db, opts.Dimensions)
	if err != nil {
		db.Close()
		return nil, err
	}

	seq, err := db.GetSequence(accessSeqKey, 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open access log sequence: %w", err)
	}

	return &BadgerEngine{
		db:         db,
		seq:        seq,
		dimensions: dims,
	}, nil
}

// initDimensions persists the dimensionality on first open and enforces it
// on every later open.
func initDimensions(db *badger.DB, requested int) (int, error) {
	dims := requested
	err := db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(metaDimensionsKey)
		if err == badger.ErrKeyNotFound {
			if requested <= 0 {
				return fmt.Errorf("%w: new store requires a positive dimensionality", ErrInvalidData)
			}
			return txn.Set(metaDimensionsKey, []byte(strconv.Itoa(requested)))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			stored, convErr := strconv.Atoi(string(val))
			if convErr != nil {
				return fmt.Errorf("corrupt dimensionality metadata: %w", convErr)
			}
			if requested > 0 && requested != stored {
				return fmt.Errorf("%w: store created with %d, opened with %d",
					ErrDimensionMismatch, stored, requested)
			}
			dims = stored
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return dims, nil
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

func embeddingKey(id NodeID) []byte {
	return append([]byte{prefixEmbedding}, []byte(id)...)
}

func accessKey(seq uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixAccessLog
	binary.BigEndian.PutUint64(key[1:], seq)
	return key
}

// edgeIndexKey builds 0xPP + nodeID + 0x00 + edgeID.
func edgeIndexKey(prefix byte, nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1+len(edgeID))
	key = append(key, prefix)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	key = append(key, []byte(edgeID)...)
	return key
}

// edgeIndexPrefix builds the scan prefix 0xPP + nodeID + 0x00.
func edgeIndexPrefix(prefix byte, nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1)
	key = append(key, prefix)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	return key
}

// extractEdgeID pulls the edgeID off an index key given its scan prefix.
func extractEdgeID(key, scanPrefix []byte) EdgeID {
	return EdgeID(key[len(scanPrefix):])
}

// ============================================================================
// Node operations
// ============================================================================

// updateWithRetry runs fn in an Update transaction, retrying on Badger's
// optimistic conflict aborts. Writers that read and rewrite the same key
// (counter bumps, endpoint checks) would otherwise spuriously fail when two
// of them touch one node at the same time.
func (b *BadgerEngine) updateWithRetry(fn func(txn *badger.Txn) error) error {
	const maxAttempts = 16

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction conflict persisted after %d attempts: %w", maxAttempts, err)
}

func (b *BadgerEngine) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

// CreateNode persists a node record and its embedding blob in one
// transaction.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if len(node.Embedding) != b.dimensions {
		return fmt.Errorf("%w: got %d, store uses %d",
			ErrDimensionMismatch, len(node.Embedding), b.dimensions)
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(embeddingKey(node.ID), encodeEmbedding(node.Embedding))
	})
}

// getNodeTxn loads a node with its embedding inside an open transaction.
func getNodeTxn(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var node *Node
	if err := item.Value(func(val []byte) error {
		var decodeErr error
		node, decodeErr = decodeNode(val)
		return decodeErr
	}); err != nil {
		return nil, err
	}

	embItem, err := txn.Get(embeddingKey(id))
	if err != nil && err != badger.ErrKeyNotFound {
		return nil, err
	}
	if err == nil {
		if err := embItem.Value(func(val []byte) error {
			node.Embedding = decodeEmbedding(val)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// GetNode retrieves a node (including its embedding) by id.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		var txErr error
		node, txErr = getNodeTxn(txn, id)
		return txErr
	})
	return node, err
}

// AllNodes returns every node with its embedding.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var nodes []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = []byte{prefixNode}
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var node *Node
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				node, decodeErr = decodeNode(val)
				return decodeErr
			}); err != nil {
				return err
			}

			embItem, err := txn.Get(embeddingKey(node.ID))
			if err == nil {
				if err := embItem.Value(func(val []byte) error {
					node.Embedding = decodeEmbedding(val)
					return nil
				}); err != nil {
					return err
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	return nodes, err
}

// NodeCount returns the number of stored nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	return b.countPrefix([]byte{prefixNode})
}

// ============================================================================
// Edge operations
// ============================================================================

// CreateEdge persists an edge plus both direction indexes in one transaction,
// verifying the endpoints inside the same transaction so the referential
// check cannot race with a concurrent insert.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.updateWithRetry(func(txn *badger.Txn) error {
		key := edgeKey(edge.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if _, err := txn.Get(nodeKey(edge.SourceID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrInvalidEdge
			}
			return err
		}
		if _, err := txn.Get(nodeKey(edge.TargetID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrInvalidEdge
			}
			return err
		}

		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(edgeIndexKey(prefixOutgoing, edge.SourceID, edge.ID), nil); err != nil {
			return err
		}
		return txn.Set(edgeIndexKey(prefixIncoming, edge.TargetID, edge.ID), nil)
	})
}

// GetEdge retrieves an edge by id.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edge *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			edge, decodeErr = decodeEdge(val)
			return decodeErr
		})
	})
	return edge, err
}

// AllEdges returns every edge.
func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = []byte{prefixEdge}
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				edge, decodeErr := decodeEdge(val)
				if decodeErr != nil {
					return decodeErr
				}
				edges = append(edges, edge)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return edges, err
}

// EdgeCount returns the number of stored edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	return b.countPrefix([]byte{prefixEdge})
}

// OutgoingEdges returns edges whose source is the node.
func (b *BadgerEngine) OutgoingEdges(id NodeID) ([]*Edge, error) {
	return b.edgesByIndex(prefixOutgoing, id)
}

// IncomingEdges returns edges whose target is the node.
func (b *BadgerEngine) IncomingEdges(id NodeID) ([]*Edge, error) {
	return b.edgesByIndex(prefixIncoming, id)
}

func (b *BadgerEngine) edgesByIndex(prefix byte, id NodeID) ([]*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		scanPrefix := edgeIndexPrefix(prefix, id)
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = scanPrefix
		itOpts.PrefetchValues = false
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			edgeID := extractEdgeID(it.Item().KeyCopy(nil), scanPrefix)
			item, err := txn.Get(edgeKey(edgeID))
			if err != nil {
				return fmt.Errorf("dangling edge index for %s: %w", edgeID, err)
			}
			if err := item.Value(func(val []byte) error {
				edge, decodeErr := decodeEdge(val)
				if decodeErr != nil {
					return decodeErr
				}
				edges = append(edges, edge)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return edges, err
}

// ============================================================================
// Access log
// ============================================================================

// RecordAccess appends one log entry and bumps the node's counter in a
// single transaction. The log sequence number comes from a Badger sequence,
// so concurrent callers never collide; commit conflicts between concurrent
// bumps of the same node are retried until one wins, so every call lands
// exactly once.
func (b *BadgerEngine) RecordAccess(id NodeID, typ AccessType, at time.Time) (int64, error) {
	if id == "" {
		return 0, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	seq, err := b.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate log sequence: %w", err)
	}

	var count int64
	err = b.updateWithRetry(func(txn *badger.Txn) error {
		node, err := getNodeTxn(txn, id)
		if err != nil {
			return err
		}
		node.AccessCount++
		count = node.AccessCount

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		if err := txn.Set(nodeKey(id), data); err != nil {
			return err
		}

		entry, err := encodeAccess(&AccessEntry{NodeID: id, AccessedAt: at, Type: typ})
		if err != nil {
			return fmt.Errorf("failed to encode access entry: %w", err)
		}
		return txn.Set(accessKey(seq), entry)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AccessLog returns log entries in append order (the sequence number is the
// key, and Badger iterates keys in ascending order).
func (b *BadgerEngine) AccessLog(id NodeID) ([]*AccessEntry, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*AccessEntry
	err := b.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = []byte{prefixAccessLog}
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				entry, decodeErr := decodeAccess(val)
				if decodeErr != nil {
					return decodeErr
				}
				if id == "" || entry.NodeID == id {
					entries = append(entries, entry)
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

// ============================================================================
// Lifecycle
// ============================================================================

// Dimensions returns the fixed embedding dimensionality of the store.
func (b *BadgerEngine) Dimensions() int {
	return b.dimensions
}

// Close releases the sequence and shuts down the underlying BadgerDB.
// Idempotent.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if err := b.seq.Release(); err != nil {
		b.db.Close()
		return fmt.Errorf("failed to release access log sequence: %w", err)
	}
	return b.db.Close()
}

// Sync forces pending writes to disk.
func (b *BadgerEngine) Sync() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Sync()
}

func (b *BadgerEngine) countPrefix(prefix []byte) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = prefix
		itOpts.PrefetchValues = false
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if !bytes.HasPrefix(it.Item().Key(), prefix) {
				break
			}
			count++
		}
		return nil
	})
	return count, err
}
