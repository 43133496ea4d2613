// Package graphscript applies line-oriented edit scripts to a blueprint graph.
//
// One command per line, arguments split like a shell would:
//
//	class   <device class name>
//	import  <import line>
//	node    <kind> <name> [x y] [key=value ...]
//	set     <node> key=value ...
//	var     <name> <type> [default] [--private] [--readonly] [--desc text]
//	unvar   <name>
//	connect <node>.<pin> <node>.<pin>
//	disconnect <node>.<pin> <node>.<pin>
//	remove  <node>
//
// Nodes are addressed by name. Blank lines and lines starting with # are ignored.
package graphscript

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

// Runner applies scripts through a blueprint.Service.
type Runner struct {
	svc    *blueprint.Service
	logger *zap.SugaredLogger
}

// NewRunner creates a script runner. A nil logger disables logging.
func NewRunner(svc *blueprint.Service, log *zap.SugaredLogger) *Runner {
	return &Runner{svc: svc, logger: logger.OrNop(log).Named("graphscript")}
}

// ApplyString applies a script held in memory.
func (r *Runner) ApplyString(g *blueprint.Graph, script string) error {
	return r.Apply(g, strings.NewReader(script))
}

// Apply runs every command in order and stops at the first failing line.
// Commands before the failure stay applied. Errors wrap
// errors.ErrInvalidRequest or errors.ErrNotFound and name the line.
func (r *Runner) Apply(g *blueprint.Graph, script io.Reader) error {
	scanner := bufio.NewScanner(script)
	lineNo := 0
	applied := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse args respecting quotes, fall back to a plain split
		args, err := shellquote.Split(line)
		if err != nil {
			r.logger.Debugw("Quote parsing failed, using simple split", logger.FieldLine, lineNo, logger.FieldError, err)
			args = strings.Fields(line)
		}

		if err := r.exec(g, args); err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}
		applied++
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read script")
	}

	r.logger.Debugw("Applied script", logger.FieldGraph, g.Name, logger.FieldCount, applied)
	return nil
}

func (r *Runner) exec(g *blueprint.Graph, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "class":
		if len(rest) != 1 {
			return usage("class <name>")
		}
		g.DeviceClassName = rest[0]
		return nil

	case "import":
		if len(rest) == 0 {
			return usage("import <line>")
		}
		g.Imports = appendUnique(g.Imports, strings.Join(rest, " "))
		return nil

	case "node":
		return r.node(g, rest)

	case "set":
		if len(rest) < 2 {
			return usage("set <node> key=value ...")
		}
		node := g.FindNodeByName(rest[0])
		if node == nil {
			return errors.NewNotFoundError("node %q", rest[0])
		}
		return r.setProperties(g, node.ID, rest[1:])

	case "var":
		return r.variable(g, rest)

	case "unvar":
		if len(rest) != 1 {
			return usage("unvar <name>")
		}
		v := g.FindVariable(rest[0])
		if v == nil {
			return errors.NewNotFoundError("variable %q", rest[0])
		}
		r.svc.RemoveVariable(g, v.ID)
		return nil

	case "connect", "disconnect":
		if len(rest) != 2 {
			return usage(cmd + " <node>.<pin> <node>.<pin>")
		}
		from, err := resolvePin(g, rest[0], false)
		if err != nil {
			return err
		}
		to, err := resolvePin(g, rest[1], true)
		if err != nil {
			return err
		}
		if cmd == "connect" {
			r.svc.Connect(g, from, to)
		} else {
			r.svc.RemoveConnection(g, from, to)
		}
		return nil

	case "remove":
		if len(rest) != 1 {
			return usage("remove <node>")
		}
		node := g.FindNodeByName(rest[0])
		if node == nil {
			return errors.NewNotFoundError("node %q", rest[0])
		}
		r.svc.RemoveNode(g, node.ID)
		return nil

	default:
		return errors.NewInvalidRequestError("unknown command %q", cmd)
	}
}

// node <kind> <name> [x y] [key=value ...]
func (r *Runner) node(g *blueprint.Graph, args []string) error {
	if len(args) < 2 {
		return usage("node <kind> <name> [x y] [key=value ...]")
	}
	kind, name, rest := args[0], args[1], args[2:]

	var x, y float64
	if len(rest) >= 2 {
		px, errX := strconv.ParseFloat(rest[0], 64)
		py, errY := strconv.ParseFloat(rest[1], 64)
		if errX == nil && errY == nil {
			x, y = px, py
			rest = rest[2:]
		}
	}

	id := r.svc.AddNode(g, kind, name, x, y).ID
	return r.setProperties(g, id, rest)
}

func (r *Runner) setProperties(g *blueprint.Graph, id blueprint.ID, pairs []string) error {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return errors.NewInvalidRequestError("expected key=value, got %q", pair)
		}
		if err := r.svc.SetNodeProperty(g, id, key, value); err != nil {
			return err
		}
	}
	return nil
}

// var <name> <type> [default] [--private] [--readonly] [--desc text]
func (r *Runner) variable(g *blueprint.Graph, args []string) error {
	var positional []string
	v := blueprint.NewVariable("")

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--private":
			v.IsPublic = false
		case "--readonly":
			v.IsEditable = false
		case "--desc":
			if i+1 >= len(args) {
				return usage("--desc <text>")
			}
			i++
			v.Description = args[i]
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) < 2 || len(positional) > 3 {
		return usage("var <name> <type> [default] [--private] [--readonly] [--desc text]")
	}
	v.Name, v.Type = positional[0], positional[1]
	if len(positional) == 3 {
		v.DefaultValue = positional[2]
	}

	r.svc.AddVariable(g, v)
	return nil
}

// resolvePin finds <node>.<pin>. Input pins are preferred for connection
// targets and output pins for sources, since a function node has both an
// input and an output named Exec.
func resolvePin(g *blueprint.Graph, ref string, input bool) (blueprint.ID, error) {
	nodeName, pinName, ok := strings.Cut(ref, ".")
	if !ok {
		return blueprint.ID{}, errors.NewInvalidRequestError("pin reference %q must be <node>.<pin>", ref)
	}

	node := g.FindNodeByName(nodeName)
	if node == nil {
		return blueprint.ID{}, errors.NewNotFoundError("node %q", nodeName)
	}

	preferred, other := node.OutputPins, node.InputPins
	if input {
		preferred, other = node.InputPins, node.OutputPins
	}
	for _, pins := range [][]blueprint.Pin{preferred, other} {
		for _, p := range pins {
			if p.Name == pinName {
				return p.ID, nil
			}
		}
	}
	return blueprint.ID{}, errors.NewNotFoundError("pin %q on node %q", pinName, nodeName)
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

func usage(form string) error {
	return errors.NewInvalidRequestError("usage: %s", form)
}
