package blueprint

// PinRef locates a pin and its owning node inside a graph.
// Pointers are valid until the graph's node or pin slices are modified.
type PinRef struct {
	Node *Node
	Pin  *Pin
}

// PinIndex maps every pin ID to its owning node. Connections are resolved
// through this index instead of holding direct references.
func (g *Graph) PinIndex() map[ID]PinRef {
	index := make(map[ID]PinRef)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		for j := range n.InputPins {
			index[n.InputPins[j].ID] = PinRef{Node: n, Pin: &n.InputPins[j]}
		}
		for j := range n.OutputPins {
			index[n.OutputPins[j].ID] = PinRef{Node: n, Pin: &n.OutputPins[j]}
		}
	}
	return index
}

// FindNode returns the node with the given ID, or nil.
func (g *Graph) FindNode(id ID) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// FindNodeByName returns the first node with the given display name, or nil.
func (g *Graph) FindNodeByName(name string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i]
		}
	}
	return nil
}

// FindPin resolves a pin ID.
func (g *Graph) FindPin(id ID) (PinRef, bool) {
	ref, ok := g.PinIndex()[id]
	return ref, ok
}

// FindVariable returns the variable with the given name, or nil.
func (g *Graph) FindVariable(name string) *Variable {
	for i := range g.Variables {
		if g.Variables[i].Name == name {
			return &g.Variables[i]
		}
	}
	return nil
}

// DanglingConnections returns connections with at least one endpoint that
// does not resolve to a pin of the graph.
func (g *Graph) DanglingConnections() []Connection {
	index := g.PinIndex()
	var dangling []Connection
	for _, c := range g.Connections {
		_, fromOK := index[c.FromPinID]
		_, toOK := index[c.ToPinID]
		if !fromOK || !toOK {
			dangling = append(dangling, c)
		}
	}
	return dangling
}
