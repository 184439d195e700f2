package mindgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentmind/mindgraph/pkg/search"
	"github.com/agentmind/mindgraph/pkg/storage"
	"github.com/agentmind/mindgraph/pkg/vector"
)

// NodeView is the caller-facing projection of a node. It carries everything
// except the embedding, which stays inside the store.
type NodeView struct {
	ID          string           `json:"id"`
	Content     string           `json:"content"`
	Tags        []string         `json:"tags"`
	Priority    storage.Priority `json:"priority"`
	CreatedAt   time.Time        `json:"created_at"`
	AccessCount int64            `json:"access_count"`
}

func viewOf(n *storage.Node) NodeView {
	return NodeView{
		ID:          string(n.ID),
		Content:     n.Content,
		Tags:        n.Tags,
		Priority:    n.Priority,
		CreatedAt:   n.CreatedAt,
		AccessCount: n.AccessCount,
	}
}

// EdgeView is the caller-facing projection of an edge.
type EdgeView struct {
	ID               string    `json:"id"`
	SourceID         string    `json:"source_id"`
	TargetID         string    `json:"target_id"`
	Relationship     string    `json:"relationship"`
	CreatedAt        time.Time `json:"created_at"`
	SemanticStrength float64   `json:"semantic_strength"`
}

func edgeViewOf(e *storage.Edge) EdgeView {
	return EdgeView{
		ID:               string(e.ID),
		SourceID:         string(e.SourceID),
		TargetID:         string(e.TargetID),
		Relationship:     e.Relationship,
		CreatedAt:        e.CreatedAt,
		SemanticStrength: e.SemanticStrength,
	}
}

// InsertRequest describes a new memory.
type InsertRequest struct {
	// ID is optional; when empty the store assigns a fresh unique id.
	ID string

	// Content is the memory text. Must be non-empty.
	Content string

	// Tags are free-form labels used by search filtering.
	Tags []string

	// Priority defaults to normal when empty.
	Priority storage.Priority
}

// Suggestion is an advisory pointer to an existing node that is semantically
// close to a newly inserted one. Suggestions are never persisted; the caller
// must call Connect to materialize a relationship.
type Suggestion struct {
	NodeID     string  `json:"node_id"`
	Content    string  `json:"content_snippet"`
	Similarity float64 `json:"similarity"` // presentation score in [0, 1]
}

// InsertResult is the outcome of a successful insert.
type InsertResult struct {
	Node        NodeView     `json:"node"`
	Suggestions []Suggestion `json:"suggested_connections"`
}

// Insert embeds the content, persists a new node, and returns connection
// suggestions computed against the rest of the graph.
//
// The embedding happens before any write, so a slow provider never blocks
// other operations, and a provider failure leaves nothing persisted. Insert
// writes no edges and logs no access events.
func (db *DB) Insert(ctx context.Context, req InsertRequest) (*InsertResult, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if req.Content == "" {
		return nil, wrapInvalid("content must not be empty")
	}
	priority, err := storage.ParsePriority(string(req.Priority))
	if err != nil {
		return nil, wrapStorageErr(err, "insert")
	}

	embedding, err := db.embedText(ctx, req.Content)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	node := &storage.Node{
		ID:        storage.NodeID(id),
		Content:   req.Content,
		Tags:      req.Tags,
		Priority:  priority,
		CreatedAt: time.Now(),
		Embedding: embedding,
	}
	if err := db.engine.CreateNode(node); err != nil {
		return nil, wrapStorageErr(err, "insert node "+id)
	}

	suggestions, err := db.suggestConnections(ctx, node)
	if err != nil {
		// The node is already durable; surfacing a ranking failure here
		// would misreport the insert itself. Return the node without
		// suggestions.
		db.log.Warn("connection suggestion failed", zap.String("node_id", id), zap.Error(err))
		suggestions = nil
	}

	db.log.Debug("node inserted",
		zap.String("node_id", id),
		zap.Int("suggestions", len(suggestions)))

	return &InsertResult{Node: viewOf(node), Suggestions: suggestions}, nil
}

// suggestConnections ranks the new node against every other node and keeps
// candidates at or above the auto-connect threshold. Advisory only: no edge
// writes, no access logging.
func (db *DB) suggestConnections(ctx context.Context, node *storage.Node) ([]Suggestion, error) {
	candidates, err := db.engine.AllNodes()
	if err != nil {
		return nil, wrapStorageErr(err, "suggest connections")
	}

	others := candidates[:0]
	for _, c := range candidates {
		if c.ID != node.ID {
			others = append(others, c)
		}
	}

	matches, err := db.ranker.Rank(ctx, node.Embedding, others, search.Options{
		TopK:      db.config.SuggestionLimit,
		MinCosine: db.config.AutoConnectThreshold,
	})
	if err != nil {
		return nil, wrapRankErr(err, "suggest connections")
	}

	suggestions := make([]Suggestion, len(matches))
	for i, m := range matches {
		suggestions[i] = Suggestion{
			NodeID:     string(m.Node.ID),
			Content:    snippet(m.Node.Content, db.config.SnippetLength),
			Similarity: search.Score(m.Cosine),
		}
	}
	return suggestions, nil
}

// SearchResult is one ranked search hit.
type SearchResult struct {
	NodeView
	Similarity float64 `json:"similarity"` // presentation score in [0, 1]
}

// Search embeds the query, ranks every node by cosine similarity, and
// returns the top results. A non-empty tags filter keeps only nodes sharing
// at least one tag. A non-positive topK falls back to the configured
// default.
//
// Each returned node gets one search entry in the access log and one counter
// increment; the reported access count reflects this read.
func (db *DB) Search(ctx context.Context, query string, tags []string, topK int) ([]SearchResult, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = db.config.SearchDefaultTopK
	}

	// An empty query is allowed; the provider decides its embedding and
	// ranking proceeds normally.
	embedding, err := db.embedText(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := db.engine.AllNodes()
	if err != nil {
		return nil, wrapStorageErr(err, "search")
	}

	matches, err := db.ranker.Rank(ctx, embedding, candidates, search.Options{
		Tags:      tags,
		TopK:      topK,
		MinCosine: -1,
	})
	if err != nil {
		return nil, wrapRankErr(err, "search")
	}

	now := time.Now()
	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		count, err := db.engine.RecordAccess(m.Node.ID, storage.AccessSearch, now)
		if err != nil {
			return nil, wrapStorageErr(err, "search access for "+string(m.Node.ID))
		}
		view := viewOf(m.Node)
		view.AccessCount = count
		results[i] = SearchResult{NodeView: view, Similarity: search.Score(m.Cosine)}
	}

	db.log.Debug("search completed",
		zap.Int("results", len(results)),
		zap.Strings("tags", tags))
	return results, nil
}

// Connect creates a directed relationship between two existing nodes.
//
// The relationship label is an open vocabulary string stored verbatim.
// Semantic strength is derived from the two stored embeddings at creation
// time. Connecting touches no access counters.
func (db *DB) Connect(ctx context.Context, sourceID, targetID, relationship string) (*EdgeView, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if sourceID == targetID {
		return nil, wrapInvalid("self-loops are not allowed")
	}
	if relationship == "" {
		return nil, wrapInvalid("relationship must not be empty")
	}

	source, err := db.engine.GetNode(storage.NodeID(sourceID))
	if err != nil {
		return nil, wrapStorageErr(err, "connect source "+sourceID)
	}
	target, err := db.engine.GetNode(storage.NodeID(targetID))
	if err != nil {
		return nil, wrapStorageErr(err, "connect target "+targetID)
	}

	edge := &storage.Edge{
		ID:               storage.EdgeID(uuid.NewString()),
		SourceID:         source.ID,
		TargetID:         target.ID,
		Relationship:     relationship,
		CreatedAt:        time.Now(),
		SemanticStrength: search.Score(vector.CosineSimilarity(source.Embedding, target.Embedding)),
	}
	if err := db.engine.CreateEdge(edge); err != nil {
		return nil, wrapStorageErr(err, "connect "+sourceID+" -> "+targetID)
	}

	db.log.Debug("edge created",
		zap.String("source", sourceID),
		zap.String("target", targetID),
		zap.String("relationship", relationship))

	view := edgeViewOf(edge)
	return &view, nil
}

// Connection is one edge incident to a navigated node, annotated with the
// neighbor's content so the caller can follow the graph without another
// round trip.
type Connection struct {
	EdgeID           string           `json:"edge_id"`
	NodeID           string           `json:"node_id"` // the neighbor
	Relationship     string           `json:"relationship"`
	SemanticStrength float64          `json:"semantic_strength"`
	Content          string           `json:"content"`
	Tags             []string         `json:"tags"`
	Priority         storage.Priority `json:"priority"`
}

// NavigatedNode is a node together with its full incident edge set.
type NavigatedNode struct {
	Node     NodeView     `json:"node"`
	Outgoing []Connection `json:"outgoing_connections"`
	Incoming []Connection `json:"incoming_connections"`
}

// Navigate assembles a node with all of its outgoing and incoming
// connections. Exactly one navigate event is logged for the requested node;
// neighbor counters are untouched even though their content is returned.
func (db *DB) Navigate(ctx context.Context, nodeID string) (*NavigatedNode, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	id := storage.NodeID(nodeID)
	node, err := db.engine.GetNode(id)
	if err != nil {
		return nil, wrapStorageErr(err, "navigate "+nodeID)
	}

	outgoing, err := db.engine.OutgoingEdges(id)
	if err != nil {
		return nil, wrapStorageErr(err, "navigate outgoing "+nodeID)
	}
	incoming, err := db.engine.IncomingEdges(id)
	if err != nil {
		return nil, wrapStorageErr(err, "navigate incoming "+nodeID)
	}

	assemble := func(edges []*storage.Edge, neighborOf func(*storage.Edge) storage.NodeID) ([]Connection, error) {
		conns := make([]Connection, 0, len(edges))
		for _, e := range edges {
			neighbor, err := db.engine.GetNode(neighborOf(e))
			if err != nil {
				return nil, wrapStorageErr(err, "navigate neighbor "+string(neighborOf(e)))
			}
			conns = append(conns, Connection{
				EdgeID:           string(e.ID),
				NodeID:           string(neighbor.ID),
				Relationship:     e.Relationship,
				SemanticStrength: e.SemanticStrength,
				Content:          neighbor.Content,
				Tags:             neighbor.Tags,
				Priority:         neighbor.Priority,
			})
		}
		return conns, nil
	}

	out, err := assemble(outgoing, func(e *storage.Edge) storage.NodeID { return e.TargetID })
	if err != nil {
		return nil, err
	}
	in, err := assemble(incoming, func(e *storage.Edge) storage.NodeID { return e.SourceID })
	if err != nil {
		return nil, err
	}

	count, err := db.engine.RecordAccess(id, storage.AccessNavigate, time.Now())
	if err != nil {
		return nil, wrapStorageErr(err, "navigate access "+nodeID)
	}

	view := viewOf(node)
	view.AccessCount = count

	db.log.Debug("node navigated",
		zap.String("node_id", nodeID),
		zap.Int("outgoing", len(out)),
		zap.Int("incoming", len(in)))

	return &NavigatedNode{Node: view, Outgoing: out, Incoming: in}, nil
}

// GetNode retrieves a node by id without logging an access event.
func (db *DB) GetNode(ctx context.Context, nodeID string) (*NodeView, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	node, err := db.engine.GetNode(storage.NodeID(nodeID))
	if err != nil {
		return nil, wrapStorageErr(err, "get node "+nodeID)
	}
	view := viewOf(node)
	return &view, nil
}

// AccessLog returns the recorded access events for a node in append order,
// or for the whole store when nodeID is empty.
func (db *DB) AccessLog(ctx context.Context, nodeID string) ([]*storage.AccessEntry, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	entries, err := db.engine.AccessLog(storage.NodeID(nodeID))
	if err != nil {
		return nil, wrapStorageErr(err, "access log "+nodeID)
	}
	return entries, nil
}

func wrapInvalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

// wrapRankErr translates ranker errors into the public taxonomy. A vector
// length mismatch is a caller-side problem, not a persistence failure.
func wrapRankErr(err error, context string) error {
	if errors.Is(err, search.ErrDimensionMismatch) {
		return fmt.Errorf("%s: %w: %v", context, ErrInvalidArgument, err)
	}
	return wrapStorageErr(err, context)
}

// snippet truncates content to at most limit runes, appending an ellipsis
// marker when truncation happened.
func snippet(content string, limit int) string {
	if limit <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return strings.TrimRight(string(runes[:limit]), " ") + "..."
}
