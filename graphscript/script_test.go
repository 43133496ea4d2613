package graphscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/errors"
)

func newGraph(t *testing.T) (*Runner, *blueprint.Graph) {
	t.Helper()
	svc := blueprint.NewService(nil)
	return NewRunner(svc, nil), svc.NewGraph("Script Test")
}

func TestApply(t *testing.T) {
	r, g := newGraph(t)

	err := r.ApplyString(g, `
# Door controller
class door_controller_device
import using { /Verse.org/Random }
import "using { /Verse.org/Random }"

node event ButtonPressed 10 20 ClassName=button_device EventName=InteractedWithEvent
node function "Open Door" 200 20
set "Open Door" Target=door
connect ButtonPressed.Exec "Open Door.Exec"

var Button button_device
var Count int 0 --readonly
var Secret string "\"hidden\"" --private --desc "not shown in UEFN"
`)
	require.NoError(t, err)

	assert.Equal(t, "door_controller_device", g.DeviceClassName)
	assert.Contains(t, g.Imports, "using { /Verse.org/Random }")
	assert.Len(t, g.Imports, len(blueprint.BaselineImports)+1)

	require.Len(t, g.Nodes, 2)
	event := g.Nodes[0]
	assert.Equal(t, blueprint.KindEvent, event.Kind)
	assert.Equal(t, 10.0, event.X)
	assert.Equal(t, 20.0, event.Y)
	assert.Equal(t, map[string]string{
		blueprint.PropClassName: "button_device",
		blueprint.PropEventName: "InteractedWithEvent",
	}, event.Properties)

	open := g.Nodes[1]
	assert.Equal(t, "Open Door", open.Name)
	assert.Equal(t, "door", open.Properties["Target"])

	require.Len(t, g.Connections, 1)
	assert.Equal(t, event.OutputPins[0].ID, g.Connections[0].FromPinID)
	assert.Equal(t, open.InputPins[0].ID, g.Connections[0].ToPinID)

	require.Len(t, g.Variables, 3)
	assert.Equal(t, blueprint.Variable{
		ID: g.Variables[0].ID, Name: "Button", Type: "button_device", IsEditable: true, IsPublic: true,
	}, g.Variables[0])
	assert.Equal(t, "0", g.Variables[1].DefaultValue)
	assert.False(t, g.Variables[1].IsEditable)
	assert.True(t, g.Variables[1].IsPublic)
	assert.Equal(t, `"hidden"`, g.Variables[2].DefaultValue)
	assert.False(t, g.Variables[2].IsPublic)
	assert.Equal(t, "not shown in UEFN", g.Variables[2].Description)
}

func TestApply_RemoveAndDisconnect(t *testing.T) {
	r, g := newGraph(t)

	require.NoError(t, r.ApplyString(g, `
node event A
node function B
node function C
connect A.Exec B.Exec
connect B.Exec C.Exec
connect A.Exec C.Exec
disconnect A.Exec C.Exec
remove B
var Temp int
unvar Temp
`))

	require.Len(t, g.Nodes, 2)
	assert.Empty(t, g.Connections)
	assert.Empty(t, g.Variables)
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name         string
		script       string
		wantNotFound bool
		wantLine     string
	}{
		{name: "unknown command", script: "explode now", wantLine: "line 1"},
		{name: "node missing name", script: "\n\nnode event", wantLine: "line 3"},
		{name: "unknown node", script: "set Ghost A=B", wantNotFound: true, wantLine: "line 1"},
		{name: "unknown pin", script: "node event A\nnode event B\nconnect A.Exec B.Nope", wantNotFound: true, wantLine: "line 3"},
		{name: "bad pin reference", script: "node event A\nconnect A B", wantLine: "line 2"},
		{name: "bad property", script: "node event A notapair", wantLine: "line 1"},
		{name: "var arity", script: "var OnlyName", wantLine: "line 1"},
		{name: "unvar unknown", script: "unvar Nothing", wantNotFound: true, wantLine: "line 1"},
		{name: "remove unknown", script: "remove Nothing", wantNotFound: true, wantLine: "line 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g := newGraph(t)

			err := r.ApplyString(g, tt.script)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantLine)
			if tt.wantNotFound {
				assert.True(t, errors.IsNotFoundError(err), err.Error())
			} else {
				assert.True(t, errors.IsInvalidRequestError(err), err.Error())
			}
		})
	}
}

func TestApply_UnbalancedQuotesFallBack(t *testing.T) {
	r, g := newGraph(t)

	require.NoError(t, r.ApplyString(g, `node event Broken"Name`))

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, `Broken"Name`, g.Nodes[0].Name)
}

func TestApply_StopsAtFirstError(t *testing.T) {
	r, g := newGraph(t)

	err := r.ApplyString(g, "node event A\nbogus\nnode event B")

	require.Error(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "A", g.Nodes[0].Name)
}
