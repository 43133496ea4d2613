// Package versegen lowers a blueprint graph into Verse source for a
// creative_device class.
//
// Output is deterministic and byte-stable: the same graph always produces the
// same text. Generation never fails; nodes missing generation keys and
// connections to unknown pins produce no output. Validate reports those
// problems for callers that want them.
package versegen

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

// Header is the first line of every generated file
const Header = "# Auto-generated Verse Blueprint - Do not modify manually unless necessary"

const (
	indent               = "    "
	placeholderVariables = "# Variables"
	placeholderNoNodes   = "# Add nodes to the graph to generate code"
	placeholderNoEvents  = "# No event nodes found"
)

// Generator emits Verse source for a graph.
type Generator struct {
	extraImports []string
	strict       bool
	logger       *zap.SugaredLogger
}

// Option configures a Generator.
type Option func(*Generator)

// WithImports adds import lines to every generated file, on top of the
// graph's own imports and the baseline.
func WithImports(imports ...string) Option {
	return func(g *Generator) {
		g.extraImports = append(g.extraImports, imports...)
	}
}

// WithStrict makes ExportToFile refuse graphs that Validate reports issues for.
// Generate output is unaffected.
func WithStrict(strict bool) Option {
	return func(g *Generator) {
		g.strict = strict
	}
}

// WithLogger sets the generator's logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(g *Generator) {
		g.logger = logger.OrNop(log)
	}
}

// NewGenerator creates a Verse generator
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Language returns "verse"
func (gen *Generator) Language() string {
	return "verse"
}

// FileExtension returns ".verse"
func (gen *Generator) FileExtension() string {
	return ".verse"
}

// Generate renders g with a default generator.
func Generate(g *blueprint.Graph) string {
	return NewGenerator().Generate(g)
}

// Generate renders the graph. The graph is not modified.
func (gen *Generator) Generate(g *blueprint.Graph) string {
	var sb strings.Builder

	sb.WriteString(Header + "\n\n")
	for _, imp := range gen.Imports(g) {
		sb.WriteString(imp + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("%s := class(creative_device):\n", ClassName(g)))
	writeVariables(&sb, g.Variables)
	writeOnBegin(&sb, g.Nodes)

	sb.WriteString("\n")
	return sb.String()
}

// Imports returns the deduplicated, sorted import lines for g: the graph's
// imports, the generator's extra imports and the baseline.
func (gen *Generator) Imports(g *blueprint.Graph) []string {
	set := make(map[string]struct{}, len(g.Imports)+len(blueprint.BaselineImports))
	for _, lists := range [][]string{g.Imports, gen.extraImports, blueprint.BaselineImports} {
		for _, imp := range lists {
			set[imp] = struct{}{}
		}
	}

	imports := make([]string, 0, len(set))
	for imp := range set {
		imports = append(imports, imp)
	}
	sort.Strings(imports)
	return imports
}

// ClassName is the declared device class name, or one derived from the graph name.
func ClassName(g *blueprint.Graph) string {
	if g.DeviceClassName != "" {
		return g.DeviceClassName
	}
	return blueprint.DeviceClassNameFor(g.Name)
}

func writeVariables(sb *strings.Builder, vars []blueprint.Variable) {
	if len(vars) == 0 {
		sb.WriteString(indent + placeholderVariables + "\n")
		return
	}

	sb.WriteString("\n")
	for _, v := range vars {
		sb.WriteString(VariableDeclaration(v))
	}
	sb.WriteString("\n")
}

// VariableDeclaration renders one variable, including its @editable line.
func VariableDeclaration(v blueprint.Variable) string {
	var sb strings.Builder
	if v.IsEditable {
		sb.WriteString(indent + "@editable\n")
	}

	sb.WriteString(indent + "var ")
	if v.IsPublic {
		sb.WriteString("Public_")
	}
	sb.WriteString(v.Name + " : " + v.Type)
	if v.DefaultValue != "" {
		sb.WriteString(" = " + v.DefaultValue)
	}
	sb.WriteString("\n")
	return sb.String()
}

func writeOnBegin(sb *strings.Builder, nodes []blueprint.Node) {
	sb.WriteString("\n")
	sb.WriteString(indent + "OnBegin<override>()<suspends>:void =\n")

	if len(nodes) == 0 {
		sb.WriteString(indent + indent + placeholderNoNodes + "\n")
	} else {
		events := 0
		for _, n := range nodes {
			if n.Kind != blueprint.KindEvent {
				continue
			}
			events++
			sb.WriteString(subscription(n))
		}
		if events == 0 {
			sb.WriteString(indent + indent + placeholderNoEvents + "\n")
		}
	}

	sb.WriteString("\n")
}

// subscription renders an event node's subscribe idiom, or nothing when the
// node lacks ClassName or EventName.
func subscription(n blueprint.Node) string {
	className, ok := n.Properties[blueprint.PropClassName]
	if !ok {
		return ""
	}
	eventName, ok := n.Properties[blueprint.PropEventName]
	if !ok {
		return ""
	}

	return fmt.Sprintf("%[1]s%[1]sif (Device := Get_%[2]s()):\n%[1]s%[1]s%[1]sDevice.%[3]s.Subscribe(OnEvent_%[3]s)\n",
		indent, className, eventName)
}

// ExportToFile writes the generated source to path as UTF-8.
// With WithStrict, a graph with validation issues is not written.
func (gen *Generator) ExportToFile(g *blueprint.Graph, path string) error {
	issues := Validate(g)
	for _, issue := range issues {
		gen.logger.Debugw("Graph issue", logger.FieldGraph, g.Name, "issue", issue.String())
	}
	if gen.strict && len(issues) > 0 {
		return errors.WithDetailf(
			errors.Wrapf(errors.ErrDanglingReference, "graph %q has %d issue(s)", g.Name, len(issues)),
			"first issue: %s", issues[0])
	}

	code := gen.Generate(g)
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	gen.logger.Infow("Exported Verse source",
		logger.FieldGraph, g.Name,
		logger.FieldOutput, path,
		logger.FieldSize, len(code))
	return nil
}
