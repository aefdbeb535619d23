package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/me/flowc/pkg/flow"
)

// DAGResult holds the result of DAG analysis.
type DAGResult struct {
	// Edges maps each node ID to the node IDs it depends on (upstream).
	Edges map[string][]string
	// Order is the topological sort of nodes (execution order).
	Order []string
}

// BuildDAG orders the workflow's nodes using Kahn's algorithm and
// rejects cycles.
//
// Edges come from both the recorded upstream relation and the node
// output promises in each node's bindings, so a graph whose upstream
// lists were edited by hand is still checked against its data flow.
// References to ids outside the workflow create no edges; Validate
// reports them.
func BuildDAG(w *Workflow) (*DAGResult, error) {
	nodes := w.Nodes()
	nodeIDs := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		nodeIDs[n.id] = true
	}

	// forward[A] = [B, C] means A must complete before B and C.
	// deps[B] = [A] means B depends on A.
	forward := make(map[string][]string, len(nodes))
	deps := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))

	for _, n := range nodes {
		inDegree[n.id] = 0
	}

	for _, n := range nodes {
		seen := make(map[string]bool)
		for _, depID := range dependencyIDs(n) {
			if depID == n.id {
				return nil, ErrorStructural(n.id, fmt.Sprintf("workflow contains a cycle involving nodes: %s", n.id))
			}
			if nodeIDs[depID] && !seen[depID] {
				seen[depID] = true
				forward[depID] = append(forward[depID], n.id)
				deps[n.id] = append(deps[n.id], depID)
				inDegree[n.id]++
			}
		}
	}

	// Sort dependency lists for deterministic output.
	for id := range deps {
		sort.Strings(deps[id])
	}

	// Kahn's algorithm: BFS topological sort.
	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		successors := forward[node]
		sort.Strings(successors)
		for _, succ := range successors {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
		sort.Strings(queue)
	}

	if len(order) != len(nodeIDs) {
		var cycleNodes []string
		for id, deg := range inDegree {
			if deg > 0 {
				cycleNodes = append(cycleNodes, id)
			}
		}
		sort.Strings(cycleNodes)
		return nil, ErrorStructural(strings.Join(cycleNodes, ","),
			fmt.Sprintf("workflow contains a cycle involving nodes: %s", strings.Join(cycleNodes, ", ")))
	}

	return &DAGResult{
		Edges: deps,
		Order: order,
	}, nil
}

// dependencyIDs lists the ids n depends on: its upstream nodes and the
// nodes behind every promise in its bindings.
func dependencyIDs(n *Node) []string {
	ids := n.UpstreamIDs()
	for _, b := range n.bindings {
		for _, p := range b.Data.Promises() {
			ids = append(ids, p.NodeID())
		}
	}
	return ids
}

// checkUpstreamAssigned fails if any node depends on a node that was
// never given an id, which happens when a node is used as an argument
// but not declared on the surface.
func checkUpstreamAssigned(nodes []*Node) error {
	for _, n := range nodes {
		for _, up := range n.upstream {
			if up.id == "" {
				return ErrorStructural(n.id,
					"some nodes referenced as upstream were never assigned an id; declare every node on the workflow surface")
			}
		}
	}
	return nil
}

// linkUpstream resolves serialized upstream ids against index and links
// the nodes in both directions. Edges to the reserved start and end
// nodes are dropped. Promise sources are pointed at the
// indexed nodes as well.
func linkUpstream(n *Node, upstreamIDs []string, index map[string]*Node) error {
	for _, id := range upstreamIDs {
		if flow.IsSystemNode(id) {
			continue
		}
		up, ok := index[id]
		if !ok {
			return ErrorInternal(fmt.Sprintf("node %s lists upstream node %s which is not part of the workflow", n.id, id))
		}
		n.link(up)
	}
	for _, b := range n.bindings {
		for _, p := range b.Data.Promises() {
			if target, ok := index[p.nodeID]; ok && p.node == nil {
				p.node = target
			}
		}
	}
	return nil
}
