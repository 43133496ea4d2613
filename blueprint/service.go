package blueprint

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

// Service performs the editor's CRUD operations on a Graph.
//
// Mutations are synchronous and non-transactional. A Service holds no graph
// state, but the graphs it mutates are not safe for concurrent use: callers
// confine each graph to one owner.
type Service struct {
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewService creates a graph service. A nil logger disables logging.
func NewService(log *zap.SugaredLogger) *Service {
	return &Service{
		logger: logger.OrNop(log).Named("blueprint"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewGraph creates an empty graph carrying the baseline imports and a device
// class name derived from name.
func (s *Service) NewGraph(name string) *Graph {
	now := s.now()
	g := &Graph{
		ID:              NewID(),
		Name:            name,
		DeviceClassName: DeviceClassNameFor(name),
		Imports:         append([]string(nil), BaselineImports...),
		CreatedAt:       now,
		LastModified:    now,
	}
	g.Normalize()
	s.logger.Debugw("Created graph", logger.FieldGraph, name, logger.FieldGraphID, g.ID)
	return g
}

// DeviceClassNameFor derives the class name used when a graph declares none:
// spaces become underscores and "_device" is appended.
func DeviceClassNameFor(graphName string) string {
	return strings.ReplaceAll(graphName, " ", "_") + "_device"
}

// AddNode appends a node of the given kind, applying the kind's default pin template:
//
//	event    -> output exec "Exec"
//	function -> input exec "Exec", output exec "Exec"
//	variable -> output object "Get"
//	other    -> no pins
//
// The returned pointer is valid until the next mutation of g.Nodes.
func (s *Service) AddNode(g *Graph, kind, name string, x, y float64) *Node {
	node := Node{
		ID:         NewID(),
		Name:       name,
		Kind:       kind,
		X:          x,
		Y:          y,
		InputPins:  []Pin{},
		OutputPins: []Pin{},
		Properties: map[string]string{},
	}

	switch kind {
	case KindEvent:
		node.OutputPins = append(node.OutputPins, newPin("Exec", PinExec, false))
	case KindFunction:
		node.InputPins = append(node.InputPins, newPin("Exec", PinExec, true))
		node.OutputPins = append(node.OutputPins, newPin("Exec", PinExec, false))
	case KindVariable:
		node.OutputPins = append(node.OutputPins, newPin("Get", PinObject, false))
	}

	g.Nodes = append(g.Nodes, node)
	s.touch(g)
	s.logger.Debugw("Added node", logger.FieldNodeID, node.ID, "kind", kind, "name", name)
	return &g.Nodes[len(g.Nodes)-1]
}

func newPin(name, pinType string, input bool) Pin {
	return Pin{ID: NewID(), Name: name, Type: pinType, IsInput: input}
}

// SetNodeProperty sets a generation parameter on a node.
func (s *Service) SetNodeProperty(g *Graph, nodeID ID, key, value string) error {
	node := g.FindNode(nodeID)
	if node == nil {
		return errors.NewNotFoundError("node %s", nodeID)
	}
	if node.Properties == nil {
		node.Properties = map[string]string{}
	}
	node.Properties[key] = value
	s.touch(g)
	return nil
}

// Connect records a connection between two pins. Neither direction, type nor
// existence is validated; the pins' ConnectedPinID hints are updated when the
// pins exist.
func (s *Service) Connect(g *Graph, fromPinID, toPinID ID) {
	g.Connections = append(g.Connections, Connection{FromPinID: fromPinID, ToPinID: toPinID})

	index := g.PinIndex()
	if from, ok := index[fromPinID]; ok {
		peer := toPinID
		from.Pin.ConnectedPinID = &peer
	}
	if to, ok := index[toPinID]; ok {
		peer := fromPinID
		to.Pin.ConnectedPinID = &peer
	}
	s.touch(g)
}

// RemoveNode deletes a node and every connection whose from or to endpoint is
// one of its pins. Unknown IDs are a no-op.
func (s *Service) RemoveNode(g *Graph, nodeID ID) {
	idx := -1
	for i := range g.Nodes {
		if g.Nodes[i].ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	removed := g.Nodes[idx]
	g.Nodes = append(g.Nodes[:idx], g.Nodes[idx+1:]...)

	kept := g.Connections[:0]
	dropped := 0
	for _, c := range g.Connections {
		if removed.HasPin(c.FromPinID) || removed.HasPin(c.ToPinID) {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	g.Connections = kept

	clearHints(g, func(peer ID) bool { return removed.HasPin(peer) })
	s.touch(g)
	s.logger.Debugw("Removed node", logger.FieldNodeID, nodeID, "connections_removed", dropped)
}

// RemoveConnection deletes every connection exactly matching (from, to).
func (s *Service) RemoveConnection(g *Graph, fromPinID, toPinID ID) {
	kept := g.Connections[:0]
	for _, c := range g.Connections {
		if c.FromPinID == fromPinID && c.ToPinID == toPinID {
			continue
		}
		kept = append(kept, c)
	}
	g.Connections = kept

	index := g.PinIndex()
	if from, ok := index[fromPinID]; ok && from.Pin.ConnectedPinID != nil && *from.Pin.ConnectedPinID == toPinID {
		from.Pin.ConnectedPinID = nil
	}
	if to, ok := index[toPinID]; ok && to.Pin.ConnectedPinID != nil && *to.Pin.ConnectedPinID == fromPinID {
		to.Pin.ConnectedPinID = nil
	}
	s.touch(g)
}

// AddVariable appends a variable; generation order follows insertion order.
func (s *Service) AddVariable(g *Graph, v Variable) *Variable {
	if v.ID == uuid.Nil {
		v.ID = NewID()
	}
	g.Variables = append(g.Variables, v)
	s.touch(g)
	return &g.Variables[len(g.Variables)-1]
}

// RemoveVariable deletes the variable with the given ID. Nodes and
// connections are not touched.
func (s *Service) RemoveVariable(g *Graph, id ID) bool {
	for i := range g.Variables {
		if g.Variables[i].ID == id {
			g.Variables = append(g.Variables[:i], g.Variables[i+1:]...)
			s.touch(g)
			return true
		}
	}
	return false
}

func clearHints(g *Graph, match func(peer ID) bool) {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		for j := range n.InputPins {
			if p := n.InputPins[j].ConnectedPinID; p != nil && match(*p) {
				n.InputPins[j].ConnectedPinID = nil
			}
		}
		for j := range n.OutputPins {
			if p := n.OutputPins[j].ConnectedPinID; p != nil && match(*p) {
				n.OutputPins[j].ConnectedPinID = nil
			}
		}
	}
}

func (s *Service) touch(g *Graph) {
	g.LastModified = s.now()
}
