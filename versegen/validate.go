package versegen

import (
	"fmt"

	"github.com/teranos/verseblueprint/blueprint"
)

// IssueKind classifies a validation finding
type IssueKind string

const (
	IssueDanglingConnection IssueKind = "dangling_connection"
	IssueMissingProperty    IssueKind = "missing_property"
)

// Issue is a problem Generate silently tolerates.
type Issue struct {
	Kind     IssueKind             `json:"kind"`
	NodeID   blueprint.ID          `json:"node_id,omitempty"`
	NodeName string                `json:"node_name,omitempty"`
	Property string                `json:"property,omitempty"`
	Conn     *blueprint.Connection `json:"connection,omitempty"`
}

func (i Issue) String() string {
	switch i.Kind {
	case IssueDanglingConnection:
		return fmt.Sprintf("connection %s -> %s references a missing pin", i.Conn.FromPinID, i.Conn.ToPinID)
	case IssueMissingProperty:
		return fmt.Sprintf("event node %q has no %s property", i.NodeName, i.Property)
	default:
		return string(i.Kind)
	}
}

// Validate reports connections to unknown pins and event nodes that would
// generate nothing because they lack ClassName or EventName.
// Generation does not call Validate and is unaffected by its findings.
func Validate(g *blueprint.Graph) []Issue {
	var issues []Issue

	for _, c := range g.DanglingConnections() {
		conn := c
		issues = append(issues, Issue{Kind: IssueDanglingConnection, Conn: &conn})
	}

	for _, n := range g.Nodes {
		if n.Kind != blueprint.KindEvent {
			continue
		}
		for _, key := range []string{blueprint.PropClassName, blueprint.PropEventName} {
			if _, ok := n.Properties[key]; !ok {
				issues = append(issues, Issue{
					Kind:     IssueMissingProperty,
					NodeID:   n.ID,
					NodeName: n.Name,
					Property: key,
				})
			}
		}
	}

	return issues
}
