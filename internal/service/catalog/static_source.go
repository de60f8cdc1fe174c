package catalog

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"catalog-backend/internal/domain/category"
)

// StaticSource is an in-memory Source backed by a flat node list. It serves
// local runs (loaded from a JSON fixture) and tests; production deployments
// plug the real persistence layer in behind the same interface.
type StaticSource struct {
	mu    sync.RWMutex
	nodes map[int64]*category.Node
}

// NewStaticSource creates a source holding the given nodes
func NewStaticSource(nodes ...*category.Node) *StaticSource {
	s := &StaticSource{nodes: make(map[int64]*category.Node, len(nodes))}
	for _, node := range nodes {
		s.nodes[node.ID] = node
	}
	return s
}

// LoadStaticSource reads a JSON array of nodes from a file
func LoadStaticSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var nodes []*category.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, err
	}
	return NewStaticSource(nodes...), nil
}

// Upsert adds or replaces a node
func (s *StaticSource) Upsert(node *category.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.ID] = node
}

// Remove deletes a node by id
func (s *StaticSource) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
}

// NodeByID returns a node, or nil when the id does not exist
func (s *StaticSource) NodeByID(ctx context.Context, id int64) (*category.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, exists := s.nodes[id]
	if !exists {
		return nil, nil
	}
	return node, nil
}

// Tree builds the nested tree for one filter variant
func (s *StaticSource) Tree(ctx context.Context, filter category.Filter) ([]*TreeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byParent := make(map[int64][]*category.Node)
	var roots []*category.Node
	for _, node := range s.nodes {
		if !s.visible(node, filter) {
			continue
		}
		if node.ParentID == nil {
			roots = append(roots, node)
		} else {
			byParent[*node.ParentID] = append(byParent[*node.ParentID], node)
		}
	}

	var build func(nodes []*category.Node) []*TreeNode
	build = func(nodes []*category.Node) []*TreeNode {
		sortNodes(nodes)
		out := make([]*TreeNode, 0, len(nodes))
		for _, node := range nodes {
			out = append(out, &TreeNode{
				Node:     *node,
				Children: build(byParent[node.ID]),
			})
		}
		return out
	}

	return build(roots), nil
}

// Breadcrumbs walks from the shard root down to the node
func (s *StaticSource) Breadcrumbs(ctx context.Context, nodeID int64) ([]*category.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var path []*category.Node
	seen := make(map[int64]struct{})

	node := s.nodes[nodeID]
	for node != nil {
		if _, cycled := seen[node.ID]; cycled {
			break
		}
		seen[node.ID] = struct{}{}
		path = append(path, node)

		if node.ParentID == nil {
			break
		}
		node = s.nodes[*node.ParentID]
	}

	// Walked leaf-to-root; breadcrumbs read root-to-leaf.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Children lists the direct children of a parent for one filter variant
func (s *StaticSource) Children(ctx context.Context, parentID int64, filter category.Filter) ([]*category.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []*category.Node
	for _, node := range s.nodes {
		if node.ParentID != nil && *node.ParentID == parentID && s.visible(node, filter) {
			children = append(children, node)
		}
	}
	sortNodes(children)
	return children, nil
}

// Descendants lists the whole subtree under a parent for one filter variant
func (s *StaticSource) Descendants(ctx context.Context, parentID int64, filter category.Filter) ([]*category.Node, error) {
	var out []*category.Node

	frontier := []int64{parentID}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		children, err := s.Children(ctx, next, filter)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			out = append(out, child)
			frontier = append(frontier, child.ID)
		}
	}
	return out, nil
}

// Statistics computes tree-wide counters
func (s *StaticSource) Statistics(ctx context.Context) (*Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Statistics{}
	for _, node := range s.nodes {
		stats.TotalCount++
		if node.IsActive() {
			stats.ActiveCount++
		}
		if node.ParentID == nil {
			stats.RootCount++
		}
		if node.Depth > stats.MaxDepth {
			stats.MaxDepth = node.Depth
		}
	}
	return stats, nil
}

func (s *StaticSource) visible(node *category.Node, filter category.Filter) bool {
	return filter == category.FilterAll || node.IsActive()
}

func sortNodes(nodes []*category.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Position != nodes[j].Position {
			return nodes[i].Position < nodes[j].Position
		}
		return nodes[i].ID < nodes[j].ID
	})
}
