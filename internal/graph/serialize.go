package graph

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Version is the current on-disk/wire format version. A bump forces
// callers to discard any cache encoded with a different version rather
// than attempting migration.
const Version uint32 = 1

// ErrVersionMismatch is returned by Deserialize when the blob's version
// prefix does not match Version.
var ErrVersionMismatch = fmt.Errorf("graph: cache version mismatch")

type serializedEdge struct {
	From uint32
	To   uint32
}

type serialized struct {
	Version uint32
	Nodes   []FileNode
	Edges   []serializedEdge
}

// Serialize encodes the graph to a versioned binary blob. Node identity
// is preserved in insertion order; edge endpoints are dense indices into
// the emitted node list, not the live FileIDs (which may have gaps left
// by RemoveFile).
func (g *Graph) Serialize() ([]byte, error) {
	remap := make(map[FileID]uint32, g.FileCount())
	payload := serialized{Version: Version}

	for id, alive := range g.alive {
		if !alive {
			continue
		}
		remap[FileID(id)] = uint32(len(payload.Nodes))
		payload.Nodes = append(payload.Nodes, g.nodes[id])
	}

	for id, alive := range g.alive {
		if !alive {
			continue
		}
		from := remap[FileID(id)]
		for target := range g.outgoing[id] {
			payload.Edges = append(payload.Edges, serializedEdge{From: from, To: remap[target]})
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("graph: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a blob produced by Serialize into a fresh graph.
func Deserialize(data []byte) (*Graph, error) {
	var payload serialized
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("graph: decode: %w", err)
	}
	if payload.Version != Version {
		return nil, ErrVersionMismatch
	}

	g := New()
	for _, node := range payload.Nodes {
		g.AddFile(node.Path, node.IsTest)
		id := g.pathToID[node.Path]
		g.nodes[id] = node
	}
	for _, edge := range payload.Edges {
		if int(edge.From) >= len(g.nodes) || int(edge.To) >= len(g.nodes) {
			continue
		}
		g.AddDependency(FileID(edge.From), FileID(edge.To))
	}
	return g, nil
}
