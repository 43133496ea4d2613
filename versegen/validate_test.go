package versegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/verseblueprint/blueprint"
)

func TestValidate(t *testing.T) {
	svc := blueprint.NewService(nil)
	g := svc.NewGraph("Validate")

	complete := svc.AddNode(g, blueprint.KindEvent, "Complete", 0, 0).ID
	require.NoError(t, svc.SetNodeProperty(g, complete, blueprint.PropClassName, "button_device"))
	require.NoError(t, svc.SetNodeProperty(g, complete, blueprint.PropEventName, "InteractedWithEvent"))
	bare := svc.AddNode(g, blueprint.KindEvent, "Bare", 0, 0).ID
	fn := svc.AddNode(g, blueprint.KindFunction, "Print", 0, 0)
	fnIn := fn.InputPins[0].ID
	ghost := blueprint.NewID()
	svc.Connect(g, ghost, fnIn)

	issues := Validate(g)

	require.Len(t, issues, 3)
	assert.Equal(t, IssueDanglingConnection, issues[0].Kind)
	assert.Equal(t, ghost, issues[0].Conn.FromPinID)
	assert.Contains(t, issues[0].String(), "missing pin")

	assert.Equal(t, Issue{Kind: IssueMissingProperty, NodeID: bare, NodeName: "Bare", Property: blueprint.PropClassName}, issues[1])
	assert.Equal(t, blueprint.PropEventName, issues[2].Property)
	assert.Equal(t, `event node "Bare" has no EventName property`, issues[2].String())
}

func TestValidate_Clean(t *testing.T) {
	svc := blueprint.NewService(nil)
	g := svc.NewGraph("Clean")
	a := svc.AddNode(g, blueprint.KindFunction, "A", 0, 0).OutputPins[0].ID
	b := svc.AddNode(g, blueprint.KindFunction, "B", 0, 0).InputPins[0].ID
	svc.Connect(g, a, b)

	assert.Empty(t, Validate(g))
}
