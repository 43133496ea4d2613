package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/verseblueprint/am"
	"github.com/teranos/verseblueprint/catalog"
	"github.com/teranos/verseblueprint/digest"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/version"
)

// isolate points HOME and the working directory at temp dirs so no real
// config or catalog is touched. It returns the fixture digest path.
func isolate(t *testing.T) string {
	t.Helper()
	fixture, err := filepath.Abs(filepath.Join("..", "..", "..", "digest", "testdata", "devices.digest.verse"))
	require.NoError(t, err)

	t.Setenv("HOME", t.TempDir())
	t.Setenv("VVBE_OUTPUT", "")
	t.Chdir(t.TempDir())
	am.Reset()
	t.Cleanup(am.Reset)
	return fixture
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	isolate(t)

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vvbe ")
	assert.Contains(t, out, "Platform: ")

	out, err = run(t, "version", "--json")
	require.NoError(t, err)
	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Get(), info)
}

func TestGraphWorkflow(t *testing.T) {
	isolate(t)

	steps := [][]string{
		{"graph", "new", "Counter.blueprint", "--name", "Counter"},
		{"graph", "add-var", "Counter.blueprint", "Score", "int", "0", "--desc", "Points so far"},
		{"graph", "add-var", "Counter.blueprint", "Label", "string", "--private", "--readonly"},
		{"graph", "add-node", "Counter.blueprint", "event", "OnPressed",
			"ClassName=button_device", "EventName=InteractedWithEvent", "--x", "10", "--y", "20"},
		{"graph", "add-node", "Counter.blueprint", "function", "Increment"},
		{"graph", "connect", "Counter.blueprint", "OnPressed.Exec", "Increment.Exec"},
	}
	for _, args := range steps {
		_, err := run(t, args...)
		require.NoError(t, err, strings.Join(args, " "))
	}

	out, err := run(t, "generate", "Counter.blueprint", "--stdout")
	require.NoError(t, err)
	assert.Contains(t, out, "Counter_device := class(creative_device):")
	assert.Contains(t, out, "    @editable\n    var Public_Score : int = 0\n")
	assert.Contains(t, out, "    var Label : string\n")
	assert.Contains(t, out, "        if (Device := Get_button_device()):\n")
	assert.Contains(t, out, "            Device.InteractedWithEvent.Subscribe(OnEvent_InteractedWithEvent)\n")

	out, err = run(t, "generate", "Counter.blueprint")
	require.NoError(t, err)
	assert.Equal(t, "Counter.verse\n", out)
	data, err := os.ReadFile("Counter.verse")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Counter_device := class(creative_device):")

	out, err = run(t, "--json", "graph", "show", "Counter.blueprint")
	require.NoError(t, err)
	var g struct {
		Name        string            `json:"name"`
		Nodes       []json.RawMessage `json:"nodes"`
		Connections []json.RawMessage `json:"connections"`
		Variables   []json.RawMessage `json:"variables"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Equal(t, "Counter", g.Name)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Connections, 1)
	assert.Len(t, g.Variables, 2)

	_, err = run(t, "graph", "validate", "Counter.blueprint")
	assert.NoError(t, err)

	_, err = run(t, "graph", "remove-node", "Counter.blueprint", "Increment")
	require.NoError(t, err)
	_, err = run(t, "graph", "remove-var", "Counter.blueprint", "Label")
	require.NoError(t, err)

	out, err = run(t, "graph", "show", "Counter.blueprint")
	require.NoError(t, err)
	assert.Contains(t, out, "OnPressed")
	assert.NotContains(t, out, "Increment")
	assert.Contains(t, out, "0 connection(s)")
}

func TestGenerate_CorruptRecordKeepsOutput(t *testing.T) {
	isolate(t)

	_, err := run(t, "graph", "new", "Door.blueprint", "--name", "Door")
	require.NoError(t, err)
	_, err = run(t, "graph", "add-var", "Door.blueprint", "Count", "int", "0")
	require.NoError(t, err)
	_, err = run(t, "generate", "Door.blueprint")
	require.NoError(t, err)
	before, err := os.ReadFile("Door.verse")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile("Door.blueprint", []byte(`{"format_version": "1.0.0", "graph": {"na`), 0644))

	_, err = run(t, "generate", "Door.blueprint")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIncompatibleRecord))

	after, err := os.ReadFile("Door.verse")
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestGraphNew(t *testing.T) {
	isolate(t)

	out, err := run(t, "graph", "new", "Device")
	require.NoError(t, err)
	assert.Equal(t, "Device.blueprint\n", out)

	_, err = run(t, "graph", "new", "Device.blueprint")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = run(t, "graph", "new", "Device.blueprint", "--force", "--class", "my_device")
	require.NoError(t, err)
	out, err = run(t, "graph", "show", "Device.blueprint")
	require.NoError(t, err)
	assert.Contains(t, out, "NewDevice (my_device)")

	t.Setenv("VVBE_GRAPH_FORMAT", "yaml")
	am.Reset()
	out, err = run(t, "graph", "new", "Other")
	require.NoError(t, err)
	assert.Equal(t, "Other.yaml\n", out)
}

func TestGraphErrors(t *testing.T) {
	isolate(t)
	_, err := run(t, "graph", "new", "G.blueprint")
	require.NoError(t, err)

	tests := []struct {
		name     string
		args     []string
		notFound bool
	}{
		{"missing graph", []string{"graph", "show", "Missing.blueprint"}, true},
		{"unknown node", []string{"graph", "remove-node", "G.blueprint", "Nope"}, true},
		{"unknown pin", []string{"graph", "connect", "G.blueprint", "A.Exec", "B.Exec"}, true},
		{"bad property", []string{"graph", "add-node", "G.blueprint", "event", "E", "novalue"}, false},
		{"unsupported extension", []string{"graph", "show", "G.txt"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.IsNotFoundError(err), err.Error())
		})
	}
}

func TestGraphValidate_ReportsIssues(t *testing.T) {
	isolate(t)
	_, err := run(t, "graph", "new", "G.blueprint")
	require.NoError(t, err)
	_, err = run(t, "graph", "add-node", "G.blueprint", "event", "Bare")
	require.NoError(t, err)

	out, err := run(t, "graph", "validate", "G.blueprint")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDanglingReference))
	assert.Contains(t, out, `✗ event node "Bare" has no ClassName property`)

	_, err = run(t, "generate", "G.blueprint", "--strict")
	require.Error(t, err)
	_, statErr := os.Stat("G.verse")
	assert.True(t, os.IsNotExist(statErr))
}

func TestGraphApply(t *testing.T) {
	isolate(t)
	_, err := run(t, "graph", "new", "G.yaml", "--name", "Lamp")
	require.NoError(t, err)

	script := "var Lit logic false\nnode event Start ClassName=timer_device EventName=SuccessEvent\n"
	require.NoError(t, os.WriteFile("edits.txt", []byte(script), 0644))

	out, err := run(t, "graph", "apply", "G.yaml", "edits.txt")
	require.NoError(t, err)
	assert.Equal(t, "G.yaml: 1 node(s), 0 connection(s), 1 variable(s)\n", out)

	_, err = run(t, "graph", "apply", "G.yaml", "missing.txt")
	assert.Error(t, err)
}

func TestDigestExtract(t *testing.T) {
	fixture := isolate(t)

	out, err := run(t, "digest", "extract", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "Module /Fortnite.com/Devices")
	assert.Contains(t, out, "button_device")
	assert.NotContains(t, out, "vector_helper")

	out, err = run(t, "--json", "digest", "extract", fixture)
	require.NoError(t, err)
	var d digest.Digest
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "/Fortnite.com/Devices", d.ModulePath)
	assert.NotNil(t, d.FindClass("timer_device"))

	out, err = run(t, "digest", "extract", fixture, "--class", "button_device")
	require.NoError(t, err)
	assert.Contains(t, out, "  SetInteractionText(Text:message):void\n")
	assert.Contains(t, out, "  var InteractionTime : float\n")
	assert.Contains(t, out, "  InteractedWithEvent : listenable(agent)\n")

	_, err = run(t, "digest", "extract", fixture, "--class", "missing_device")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDigestScanAndCatalog(t *testing.T) {
	fixture := isolate(t)

	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join("Plugins", "Verse"), 0755))
	digestPath := filepath.Join("Plugins", "Verse", "Fortnite.digest.verse")
	require.NoError(t, os.WriteFile(digestPath, data, 0644))

	out, err := run(t, "digest", "scan", "Plugins", "--import")
	require.NoError(t, err)
	assert.Contains(t, out, "Fortnite.digest.verse")

	out, err = run(t, "--json", "catalog", "search", "b")
	require.NoError(t, err)
	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "button_device", entries[0].Name)
	assert.Equal(t, "/Fortnite.com/Devices", entries[0].ModulePath)

	out, err = run(t, "catalog", "show", "timer_device")
	require.NoError(t, err)
	assert.Contains(t, out, "Start(Agent:agent):void")

	out, err = run(t, "--json", "catalog", "sources")
	require.NoError(t, err)
	var sources []catalog.Source
	require.NoError(t, json.Unmarshal([]byte(out), &sources))
	require.Len(t, sources, 1)
	assert.Equal(t, 2, sources[0].Classes)

	_, err = run(t, "catalog", "show", "vector_helper")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDigestScan_Workspace(t *testing.T) {
	fixture := isolate(t)

	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll("Island", 0755))
	require.NoError(t, os.WriteFile(filepath.Join("Island", "Island.digest.verse"), data, 0644))
	ws := `{"folders": [{"path": "Island", "name": "Island-Verse"}, {"path": "Gone"}]}`
	require.NoError(t, os.WriteFile("Island.code-workspace", []byte(ws), 0644))

	out, err := run(t, "--json", "digest", "scan", "--workspace", "Island.code-workspace")
	require.NoError(t, err)
	var files []string
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "Island.digest.verse", filepath.Base(files[0]))

	_, err = run(t, "digest", "scan")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestDigestFetch(t *testing.T) {
	fixture := isolate(t)

	out, err := run(t, "digest", "fetch", fixture, "-o", filepath.Join("cache", "devices.digest.verse"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("cache", "devices.digest.verse")+"\n", out)

	data, err := os.ReadFile(filepath.Join("cache", "devices.digest.verse"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "button_device")
}

func TestAm(t *testing.T) {
	isolate(t)

	out, err := run(t, "am", "show", "--format", "json")
	require.NoError(t, err)
	var cfg am.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "json", cfg.Graph.Format)

	out, err = run(t, "am", "show")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# vvbe configuration\n"))

	_, err = run(t, "am", "show", "--format", "xml")
	require.Error(t, err)

	out, err = run(t, "am", "init")
	require.NoError(t, err)
	assert.Equal(t, "✓ Wrote am.toml\n", out)
	_, err = run(t, "am", "init")
	require.Error(t, err)

	require.NoError(t, os.WriteFile(am.ConfigFileName, []byte("[graph]\nformat = \"toml\"\n"), 0644))
	am.Reset()
	out, err = run(t, "am", "get", "graph.format")
	require.NoError(t, err)
	assert.Equal(t, "toml\n", out)

	_, err = run(t, "am", "get", "nothing.here")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	out, err = run(t, "--json", "am", "where")
	require.NoError(t, err)
	var settings []am.SettingInfo
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	for _, s := range settings {
		if s.Key == "graph.format" {
			assert.Equal(t, am.SourceProject, s.Source)
		}
	}

	_, err = run(t, "am", "validate")
	assert.NoError(t, err)
}

func TestAmValidate_Invalid(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(am.ConfigFileName, []byte("[graph]\nformat = \"xml\"\n"), 0644))

	_, err := run(t, "am", "validate")
	require.Error(t, err)

	_, err = run(t, "graph", "new", "G")
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "vvbe am where")
}
