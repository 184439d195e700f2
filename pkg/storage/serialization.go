package storage

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"time"
)

// nodeRecord is the JSON-serializable form of a Node. The embedding is kept
// out of the JSON record and stored as a raw binary blob under its own key,
// so the hot node record stays small and the vector round-trips bit-exactly.
type nodeRecord struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
	Priority    string   `json:"priority"`
	CreatedAt   int64    `json:"createdAt"` // unix nanoseconds
	AccessCount int64    `json:"accessCount"`
}

// edgeRecord is the JSON-serializable form of an Edge.
type edgeRecord struct {
	ID               string  `json:"id"`
	SourceID         string  `json:"sourceId"`
	TargetID         string  `json:"targetId"`
	Relationship     string  `json:"relationship"`
	CreatedAt        int64   `json:"createdAt"`
	SemanticStrength float64 `json:"semanticStrength"`
}

// accessRecord is the JSON-serializable form of an AccessEntry.
type accessRecord struct {
	NodeID     string `json:"nodeId"`
	AccessedAt int64  `json:"accessedAt"`
	Type       string `json:"type"`
}

func encodeNode(n *Node) ([]byte, error) {
	return json.Marshal(nodeRecord{
		ID:          string(n.ID),
		Content:     n.Content,
		Tags:        n.Tags,
		Priority:    string(n.Priority),
		CreatedAt:   n.CreatedAt.UnixNano(),
		AccessCount: n.AccessCount,
	})
}

func decodeNode(data []byte) (*Node, error) {
	var rec nodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &Node{
		ID:          NodeID(rec.ID),
		Content:     rec.Content,
		Tags:        rec.Tags,
		Priority:    Priority(rec.Priority),
		CreatedAt:   time.Unix(0, rec.CreatedAt),
		AccessCount: rec.AccessCount,
	}, nil
}

func encodeEdge(e *Edge) ([]byte, error) {
	return json.Marshal(edgeRecord{
		ID:               string(e.ID),
		SourceID:         string(e.SourceID),
		TargetID:         string(e.TargetID),
		Relationship:     e.Relationship,
		CreatedAt:        e.CreatedAt.UnixNano(),
		SemanticStrength: e.SemanticStrength,
	})
}

func decodeEdge(data []byte) (*Edge, error) {
	var rec edgeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &Edge{
		ID:               EdgeID(rec.ID),
		SourceID:         NodeID(rec.SourceID),
		TargetID:         NodeID(rec.TargetID),
		Relationship:     rec.Relationship,
		CreatedAt:        time.Unix(0, rec.CreatedAt),
		SemanticStrength: rec.SemanticStrength,
	}, nil
}

func encodeAccess(e *AccessEntry) ([]byte, error) {
	return json.Marshal(accessRecord{
		NodeID:     string(e.NodeID),
		AccessedAt: e.AccessedAt.UnixNano(),
		Type:       string(e.Type),
	})
}

func decodeAccess(data []byte) (*AccessEntry, error) {
	var rec accessRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &AccessEntry{
		NodeID:     NodeID(rec.NodeID),
		AccessedAt: time.Unix(0, rec.AccessedAt),
		Type:       AccessType(rec.Type),
	}, nil
}

// encodeEmbedding packs a vector as little-endian IEEE-754 float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// decodeEmbedding unpacks a little-endian IEEE-754 float32 blob.
func decodeEmbedding(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out
}
