package versegen

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/graphscript"
)

// Each testdata/*.txtar archive holds the graph name as its comment, a
// graphscript building the graph and the exact expected source.
func TestGenerate_Golden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txtar")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(file)
			require.NoError(t, err)

			var script, want string
			for _, f := range ar.Files {
				switch f.Name {
				case "script":
					script = string(f.Data)
				case "want.verse":
					want = string(f.Data)
				}
			}

			svc := blueprint.NewService(nil)
			g := svc.NewGraph(strings.TrimSpace(string(ar.Comment)))
			require.NoError(t, graphscript.NewRunner(svc, nil).ApplyString(g, script))

			assert.Equal(t, want, Generate(g))
		})
	}
}

func testDevice() *blueprint.Graph {
	return &blueprint.Graph{
		Name:            "TestDevice",
		DeviceClassName: "test_device",
		Imports: []string{
			"using { /Verse.org/Simulation }",
			"using { /Fortnite.com/Devices }",
		},
		Variables: []blueprint.Variable{
			{Name: "Count", Type: "int", DefaultValue: "0", IsPublic: true, IsEditable: true},
		},
	}
}

func TestGenerate_TestDevice(t *testing.T) {
	code := Generate(testDevice())

	assert.Contains(t, code, "using { /Verse.org/Simulation }")
	assert.Contains(t, code, "test_device := class(creative_device):")
	assert.Contains(t, code, "var Public_Count : int = 0")
	assert.Contains(t, code, "OnBegin<override>()<suspends>:void =")
}

func TestGenerate_BaselineImportsOnceAndSorted(t *testing.T) {
	tests := []struct {
		name    string
		imports []string
	}{
		{name: "none", imports: nil},
		{name: "reversed baseline", imports: []string{
			"using { /Verse.org/Simulation }",
			"using { /UnrealEngine.com/Temporary/Diagnostics }",
			"using { /Fortnite.com/Devices }",
		}},
		{name: "duplicates and extras", imports: []string{
			"using { /Verse.org/Random }",
			"using { /Fortnite.com/Devices }",
			"using { /Fortnite.com/Devices }",
			"using { /Fortnite.com/Characters }",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := Generate(&blueprint.Graph{Name: "Imports", Imports: tt.imports})

			for _, imp := range blueprint.BaselineImports {
				assert.Equal(t, 1, strings.Count(code, imp+"\n"), imp)
			}

			var block []string
			for _, line := range strings.Split(code, "\n") {
				if strings.HasPrefix(line, "using ") {
					block = append(block, line)
				}
			}
			assert.True(t, sort.StringsAreSorted(block), block)
		})
	}
}

func TestGenerate_NoVariables(t *testing.T) {
	code := Generate(&blueprint.Graph{Name: "Empty"})

	assert.Contains(t, code, "\n    # Variables\n")
	for _, line := range strings.Split(code, "\n") {
		assert.False(t, strings.HasPrefix(strings.TrimSpace(line), "var "), line)
	}
}

func TestGenerate_Variables(t *testing.T) {
	g := &blueprint.Graph{
		Name: "Vars",
		Variables: []blueprint.Variable{
			{Name: "Greeting", Type: "string", DefaultValue: `"Hello, world!"`, IsEditable: true, IsPublic: true},
			{Name: "Ratio", Type: "float", DefaultValue: "0.5"},
			{Name: "Target", Type: "creative_prop", IsEditable: true},
			{Name: "Tags", Type: "[]string", DefaultValue: "array{}", IsPublic: true},
		},
	}

	code := Generate(g)
	lines := strings.Split(code, "\n")

	want := map[string]bool{
		`    var Public_Greeting : string = "Hello, world!"`: true,
		`    var Ratio : float = 0.5`:                        false,
		`    var Target : creative_prop`:                     true,
		`    var Public_Tags : []string = array{}`:           false,
	}
	for i, line := range lines {
		editable, ok := want[line]
		if !ok {
			continue
		}
		delete(want, line)
		require.Greater(t, i, 0)
		if editable {
			assert.Equal(t, "    @editable", lines[i-1], line)
		} else {
			assert.NotEqual(t, "    @editable", lines[i-1], line)
		}
	}
	assert.Empty(t, want, "missing variable lines")

	// Declaration order follows the graph
	assert.Less(t, strings.Index(code, "Greeting"), strings.Index(code, "Ratio"))
	assert.Less(t, strings.Index(code, "Target"), strings.Index(code, "Tags"))
}

func TestGenerate_EventNodes(t *testing.T) {
	svc := blueprint.NewService(nil)
	g := svc.NewGraph("Events")
	pressed := svc.AddNode(g, blueprint.KindEvent, "Pressed", 0, 0).ID
	require.NoError(t, svc.SetNodeProperty(g, pressed, blueprint.PropClassName, "button_device"))
	require.NoError(t, svc.SetNodeProperty(g, pressed, blueprint.PropEventName, "InteractedWithEvent"))
	onlyEvent := svc.AddNode(g, blueprint.KindEvent, "OnlyEvent", 0, 0).ID
	require.NoError(t, svc.SetNodeProperty(g, onlyEvent, blueprint.PropEventName, "SuccessEvent"))

	code := Generate(g)

	assert.Contains(t, code, "        if (Device := Get_button_device()):\n"+
		"            Device.InteractedWithEvent.Subscribe(OnEvent_InteractedWithEvent)\n")
	assert.NotContains(t, code, "SuccessEvent")
	assert.NotContains(t, code, "# No event nodes found")
	assert.NotContains(t, code, "# Add nodes")
}

func TestGenerate_DanglingConnectionsIgnored(t *testing.T) {
	svc := blueprint.NewService(nil)
	g := svc.NewGraph("Dangling")
	svc.AddNode(g, blueprint.KindFunction, "Print", 0, 0)
	before := Generate(g)

	svc.Connect(g, blueprint.NewID(), blueprint.NewID())

	assert.Equal(t, before, Generate(g))
}

func TestGenerate_Idempotent(t *testing.T) {
	g := testDevice()
	imports := append([]string(nil), g.Imports...)

	first := Generate(g)
	second := Generate(g)

	assert.Equal(t, first, second)
	assert.Equal(t, imports, g.Imports, "graph imports must not be reordered")
}

func TestGenerator_WithImports(t *testing.T) {
	gen := NewGenerator(WithImports("using { /Verse.org/Colors }", "using { /Verse.org/Simulation }"))

	imports := gen.Imports(&blueprint.Graph{})

	assert.Equal(t, []string{
		"using { /Fortnite.com/Devices }",
		"using { /UnrealEngine.com/Temporary/Diagnostics }",
		"using { /Verse.org/Colors }",
		"using { /Verse.org/Simulation }",
	}, imports)
}

func TestGenerator_Metadata(t *testing.T) {
	gen := NewGenerator()
	assert.Equal(t, "verse", gen.Language())
	assert.Equal(t, ".verse", gen.FileExtension())
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "test_device", ClassName(&blueprint.Graph{Name: "x", DeviceClassName: "test_device"}))
	assert.Equal(t, "My_Cool_Thing_device", ClassName(&blueprint.Graph{Name: "My Cool Thing"}))
}

func TestExportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export_test.verse")
	g := &blueprint.Graph{Name: "ExportTest", DeviceClassName: "export_test_device"}

	require.NoError(t, NewGenerator().ExportToFile(g, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Generate(g), string(data))
	assert.Contains(t, string(data), "export_test_device")
}

func TestExportToFile_Strict(t *testing.T) {
	svc := blueprint.NewService(nil)
	g := svc.NewGraph("Strict")
	svc.Connect(g, blueprint.NewID(), blueprint.NewID())
	dir := t.TempDir()

	lenient := filepath.Join(dir, "lenient.verse")
	require.NoError(t, NewGenerator().ExportToFile(g, lenient))
	assert.FileExists(t, lenient)

	strict := filepath.Join(dir, "strict.verse")
	err := NewGenerator(WithStrict(true)).ExportToFile(g, strict)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDanglingReference))
	assert.NoFileExists(t, strict)
}

func TestExportToFile_BadPath(t *testing.T) {
	err := NewGenerator().ExportToFile(&blueprint.Graph{Name: "x"}, filepath.Join(t.TempDir(), "missing", "out.verse"))
	assert.Error(t, err)
}
