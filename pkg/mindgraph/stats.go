package mindgraph

import (
	"context"
	"sort"

	"github.com/agentmind/mindgraph/pkg/storage"
)

// ConnectedNode identifies the node with the highest degree.
type ConnectedNode struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Degree  int64  `json:"degree"` // outgoing + incoming
}

// AccessedNode identifies the node with the highest access count.
type AccessedNode struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	AccessCount int64  `json:"access_count"`
}

// GrowthBucket is the number of nodes created on one UTC day.
type GrowthBucket struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// GraphStats holds the aggregate metrics of the graph.
type GraphStats struct {
	TotalNodes    int64          `json:"total_nodes"`
	TotalEdges    int64          `json:"total_edges"`
	MostConnected *ConnectedNode `json:"most_connected_node,omitempty"`
	MostAccessed  *AccessedNode  `json:"most_accessed_node,omitempty"`
	Growth        []GrowthBucket `json:"growth,omitempty"`
}

// Stats computes aggregate metrics from the current store state. Nothing is
// cached: every call scans the node and edge sets, so the result always
// reflects the latest writes. Stats logs no access events.
//
// Tie-breaking is deterministic: most-connected prefers the smallest id;
// most-accessed prefers the earliest creation time, then the smallest id.
func (db *DB) Stats(ctx context.Context) (*GraphStats, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	nodes, err := db.engine.AllNodes()
	if err != nil {
		return nil, wrapStorageErr(err, "stats nodes")
	}
	edges, err := db.engine.AllEdges()
	if err != nil {
		return nil, wrapStorageErr(err, "stats edges")
	}

	stats := &GraphStats{
		TotalNodes: int64(len(nodes)),
		TotalEdges: int64(len(edges)),
	}
	if len(nodes) == 0 {
		return stats, nil
	}

	degree := make(map[storage.NodeID]int64, len(nodes))
	for _, e := range edges {
		degree[e.SourceID]++
		degree[e.TargetID]++
	}

	var topConnected, topAccessed *storage.Node
	for _, n := range nodes {
		if topConnected == nil ||
			degree[n.ID] > degree[topConnected.ID] ||
			(degree[n.ID] == degree[topConnected.ID] && n.ID < topConnected.ID) {
			topConnected = n
		}
		if topAccessed == nil || moreAccessed(n, topAccessed) {
			topAccessed = n
		}
	}

	stats.MostConnected = &ConnectedNode{
		ID:      string(topConnected.ID),
		Content: topConnected.Content,
		Degree:  degree[topConnected.ID],
	}
	stats.MostAccessed = &AccessedNode{
		ID:          string(topAccessed.ID),
		Content:     topAccessed.Content,
		AccessCount: topAccessed.AccessCount,
	}
	stats.Growth = growthBuckets(nodes)
	return stats, nil
}

// moreAccessed reports whether a should replace b as the most accessed node.
func moreAccessed(a, b *storage.Node) bool {
	if a.AccessCount != b.AccessCount {
		return a.AccessCount > b.AccessCount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// growthBuckets counts node creations per UTC day, ordered ascending.
func growthBuckets(nodes []*storage.Node) []GrowthBucket {
	counts := make(map[string]int64)
	for _, n := range nodes {
		counts[n.CreatedAt.UTC().Format("2006-01-02")]++
	}

	buckets := make([]GrowthBucket, 0, len(counts))
	for day, count := range counts {
		buckets = append(buckets, GrowthBucket{Day: day, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Day < buckets[j].Day
	})
	return buckets
}

// GraphExport is a full snapshot of nodes and edges without embeddings,
// suitable for visualization front-ends. Export logs no access events.
type GraphExport struct {
	Nodes []NodeView `json:"nodes"`
	Edges []EdgeView `json:"edges"`
}

// Export returns every node and edge in the graph. Output order is
// deterministic: nodes by id, edges by id.
func (db *DB) Export(ctx context.Context) (*GraphExport, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	nodes, err := db.engine.AllNodes()
	if err != nil {
		return nil, wrapStorageErr(err, "export nodes")
	}
	edges, err := db.engine.AllEdges()
	if err != nil {
		return nil, wrapStorageErr(err, "export edges")
	}

	export := &GraphExport{
		Nodes: make([]NodeView, len(nodes)),
		Edges: make([]EdgeView, len(edges)),
	}
	for i, n := range nodes {
		export.Nodes[i] = viewOf(n)
	}
	for i, e := range edges {
		export.Edges[i] = edgeViewOf(e)
	}
	sort.Slice(export.Nodes, func(i, j int) bool { return export.Nodes[i].ID < export.Nodes[j].ID })
	sort.Slice(export.Edges, func(i, j int) bool { return export.Edges[i].ID < export.Edges[j].ID })
	return export, nil
}
