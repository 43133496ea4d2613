// Package blueprint holds the visual graph model (nodes, pins, connections,
// variables) and the service that mutates it.
//
// The graph is a tree: a Graph owns Nodes and Variables, a Node owns its Pins.
// Connections reference pins by ID only; resolve them through PinIndex.
package blueprint

import (
	"time"

	"github.com/google/uuid"
)

// ID is the opaque, process-unique identity used by every graph entity.
type ID = uuid.UUID

// NewID returns a fresh identity.
func NewID() ID {
	return uuid.New()
}

// Node kinds with a default pin template. Any other string is a valid kind.
const (
	KindEvent    = "event"
	KindFunction = "function"
	KindVariable = "variable"
)

// Pin types
const (
	PinExec   = "exec"
	PinObject = "object"
	PinBool   = "bool"
	PinInt    = "int"
	PinFloat  = "float"
	PinString = "string"
)

// Node property keys read by the source generator
const (
	PropClassName    = "ClassName"
	PropEventName    = "EventName"
	PropVariableName = "VariableName"
)

// DefaultGraphName is used when a graph has to be created without a user supplied name
const DefaultGraphName = "NewDevice"

// BaselineImports are always present in generated source and in new graphs.
var BaselineImports = []string{
	"using { /Verse.org/Simulation }",
	"using { /Fortnite.com/Devices }",
	"using { /UnrealEngine.com/Temporary/Diagnostics }",
}

// Graph is the aggregate root of a visual program.
type Graph struct {
	ID              ID           `json:"id" yaml:"id" toml:"id"`
	Name            string       `json:"name" yaml:"name" toml:"name"`
	FilePath        string       `json:"file_path" yaml:"file_path" toml:"file_path"` // Output .verse file association
	Nodes           []Node       `json:"nodes" yaml:"nodes" toml:"nodes"`
	Connections     []Connection `json:"connections" yaml:"connections" toml:"connections"`
	Variables       []Variable   `json:"variables" yaml:"variables" toml:"variables"` // Generation order follows this slice
	DeviceClassName string       `json:"device_class_name" yaml:"device_class_name" toml:"device_class_name"`
	Imports         []string     `json:"imports" yaml:"imports" toml:"imports"`
	CreatedAt       time.Time    `json:"created_at" yaml:"created_at" toml:"created_at"`
	LastModified    time.Time    `json:"last_modified" yaml:"last_modified" toml:"last_modified"`
}

// Node is a vertex of the visual graph. X/Y are editor placement only.
type Node struct {
	ID         ID                `json:"id" yaml:"id" toml:"id"`
	Name       string            `json:"name" yaml:"name" toml:"name"`
	Kind       string            `json:"kind" yaml:"kind" toml:"kind"`
	X          float64           `json:"x" yaml:"x" toml:"x"`
	Y          float64           `json:"y" yaml:"y" toml:"y"`
	InputPins  []Pin             `json:"input_pins" yaml:"input_pins" toml:"input_pins"`
	OutputPins []Pin             `json:"output_pins" yaml:"output_pins" toml:"output_pins"`
	Properties map[string]string `json:"properties" yaml:"properties" toml:"properties"`
}

// Pin is a typed, directional connection point on a node.
type Pin struct {
	ID      ID     `json:"id" yaml:"id" toml:"id"`
	Name    string `json:"name" yaml:"name" toml:"name"`
	Type    string `json:"type" yaml:"type" toml:"type"`
	IsInput bool   `json:"is_input" yaml:"is_input" toml:"is_input"`
	// ConnectedPinID is a denormalized hint; Graph.Connections is authoritative.
	ConnectedPinID *ID `json:"connected_pin_id,omitempty" yaml:"connected_pin_id,omitempty" toml:"connected_pin_id,omitempty"`
}

// Connection links two pins by identity. No direction or type validation.
type Connection struct {
	FromPinID ID `json:"from_pin_id" yaml:"from_pin_id" toml:"from_pin_id"`
	ToPinID   ID `json:"to_pin_id" yaml:"to_pin_id" toml:"to_pin_id"`
}

// Variable is a class member declared by the graph.
type Variable struct {
	ID           ID     `json:"id" yaml:"id" toml:"id"`
	Name         string `json:"name" yaml:"name" toml:"name"`
	Type         string `json:"type" yaml:"type" toml:"type"`                            // Free-form, not type checked
	DefaultValue string `json:"default_value" yaml:"default_value" toml:"default_value"` // Emitted verbatim when non-empty
	IsEditable   bool   `json:"is_editable" yaml:"is_editable" toml:"is_editable"`
	IsPublic     bool   `json:"is_public" yaml:"is_public" toml:"is_public"`
	Description  string `json:"description" yaml:"description" toml:"description"`
}

// NewVariable returns a variable with the editor defaults: string typed,
// editable and public.
func NewVariable(name string) Variable {
	return Variable{
		ID:         NewID(),
		Name:       name,
		Type:       PinString,
		IsEditable: true,
		IsPublic:   true,
	}
}

// Pins returns the node's input pins followed by its output pins.
func (n *Node) Pins() []Pin {
	pins := make([]Pin, 0, len(n.InputPins)+len(n.OutputPins))
	pins = append(pins, n.InputPins...)
	return append(pins, n.OutputPins...)
}

// HasPin reports whether id belongs to one of the node's pins.
func (n *Node) HasPin(id ID) bool {
	for _, p := range n.InputPins {
		if p.ID == id {
			return true
		}
	}
	for _, p := range n.OutputPins {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Normalize replaces nil collections with empty ones so that freshly built
// and decoded graphs compare equal.
func (g *Graph) Normalize() {
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Connections == nil {
		g.Connections = []Connection{}
	}
	if g.Variables == nil {
		g.Variables = []Variable{}
	}
	if g.Imports == nil {
		g.Imports = []string{}
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.InputPins == nil {
			n.InputPins = []Pin{}
		}
		if n.OutputPins == nil {
			n.OutputPins = []Pin{}
		}
		if n.Properties == nil {
			n.Properties = map[string]string{}
		}
	}
}
