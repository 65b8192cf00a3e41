package cluster

import "context"

// NodeGroup is a named, ordered set of nodes such as "primary" or "secondary".
type NodeGroup struct {
	Name  string
	Nodes []*Node
}

func NewNodeGroup(name string, nodes ...*Node) *NodeGroup {
	return &NodeGroup{Name: name, Nodes: nodes}
}

// NodeResult pairs a node's FQDN with the result of a command run on it.
type NodeResult struct {
	FQDN string
	ExecResult
}

// Execute runs command on every member in order.
func (g *NodeGroup) Execute(ctx context.Context, command string, opts ExecOptions) ([]NodeResult, error) {
	return execute(ctx, g.Nodes, command, opts)
}

func execute(ctx context.Context, nodes []*Node, command string, opts ExecOptions) ([]NodeResult, error) {
	results := make([]NodeResult, 0, len(nodes))
	for _, node := range nodes {
		res, err := node.Execute(ctx, command, opts)
		if err != nil {
			return results, err
		}
		results = append(results, NodeResult{FQDN: node.FQDN, ExecResult: res})
	}
	return results, nil
}

// GroupNodes collects nodes into groups by their Group field, keeping
// first-seen group order and member order.
func GroupNodes(nodes ...*Node) []*NodeGroup {
	var groups []*NodeGroup
	index := map[string]*NodeGroup{}
	for _, node := range nodes {
		g, ok := index[node.Group]
		if !ok {
			g = NewNodeGroup(node.Group)
			index[node.Group] = g
			groups = append(groups, g)
		}
		g.Nodes = append(g.Nodes, node)
	}
	return groups
}
