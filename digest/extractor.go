package digest

import (
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

// DefaultClassSuffixes are the identifier suffixes accepted as classes.
// Declarations with other names match the same shape but are discarded.
var DefaultClassSuffixes = []string{"_component", "_device"}

// Specifier markers tested across a whole class body
const (
	markerPublic   = "<public>"
	markerNative   = "<native>"
	markerEditable = "@editable"
)

// A generic suffix is any run of <...> specifiers: <public><final>
const generic = `((?:<[^<>\n]*>)*)`

var (
	modulePathPattern = regexp.MustCompile(`#[ \t]*Module import path:[ \t]*([^\r\n]+)`)

	// name<...> := class<...>(parents):
	classHeaderPattern = regexp.MustCompile(`(\w+)` + generic + `[ \t]*:=[ \t]*class` + generic + `[ \t]*(?:\(([^)\n]*)\))?[ \t]*:`)

	// A line that starts a sibling declaration and closes the open class body
	declarationLinePattern = regexp.MustCompile(`^[ \t]*[A-Za-z_]\w*[ \t]*(?:<|:=|\(|:)`)

	// [@editable] var<...> Name<...>: type
	propertyPattern = regexp.MustCompile(`(?:@editable\s+)?\bvar` + generic + `\s+(\w+)` + generic + `[ \t]*:([^\n=]+)`)

	// Name<...>(params)[:]<effects>: return
	methodPattern = regexp.MustCompile(`(\w+)` + generic + `\(([^)\n]*)\)[ \t]*:?[ \t]*` + generic + `[ \t]*:([^\n]+)`)

	parameterPattern = regexp.MustCompile(`(\w+)[ \t]*:(.+)`)

	// NameEvent<...>: listenable(payload)
	eventPattern = regexp.MustCompile(`(\w+Event)` + generic + `[ \t]*:[ \t]*listenable\(([^)\n]*)\)`)

	specifierPattern = regexp.MustCompile(`<([^<>]*)>`)
)

// Access and native specifiers are reported through flags, not modifiers
var flagSpecifiers = map[string]bool{
	"public":    true,
	"private":   true,
	"protected": true,
	"internal":  true,
	"native":    true,
}

// Extractor recovers classes, functions and events from digest text.
// An Extractor is immutable after construction and safe for concurrent use.
type Extractor struct {
	suffixes []string
	logger   *zap.SugaredLogger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClassSuffixes replaces the accepted class name suffixes.
func WithClassSuffixes(suffixes ...string) Option {
	return func(e *Extractor) {
		e.suffixes = append([]string(nil), suffixes...)
	}
}

// WithLogger sets the extractor's logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(e *Extractor) {
		e.logger = logger.OrNop(log)
	}
}

// NewExtractor creates an extractor accepting DefaultClassSuffixes.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		suffixes: append([]string(nil), DefaultClassSuffixes...),
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

// Extract runs the default extractor over text.
func Extract(text string) *Digest {
	return defaultExtractor.Extract(text)
}

// ParseFile runs the default extractor over the file at path.
func ParseFile(path string) (*Digest, error) {
	return defaultExtractor.ParseFile(path)
}

// ParseFile reads and extracts a digest file. A missing file returns an
// error wrapping errors.ErrNotFound; any other content yields a Digest.
func (e *Extractor) ParseFile(path string) (*Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("digest file %s", path)
		}
		return nil, errors.Wrapf(err, "failed to read digest file %s", path)
	}

	d := e.Extract(string(data))
	e.logger.Infow("Parsed digest",
		logger.FieldFile, path,
		logger.FieldModule, d.ModulePath,
		logger.FieldClasses, len(d.Classes),
		logger.FieldFunctions, len(d.Functions),
		logger.FieldEvents, len(d.Events))
	return d, nil
}

// Extract recovers the module path, accepted classes, module-level functions
// and every event of a digest document. It never fails.
func (e *Extractor) Extract(text string) *Digest {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)

	d := &Digest{
		ModulePath: extractModulePath(text),
		Classes:    []Class{},
		Functions:  []Method{},
		Events:     extractEvents(text, true),
	}

	spans := findClassSpans(text)
	for _, span := range spans {
		if !e.accepts(span.name) {
			e.logger.Debugw("Skipping declaration without class suffix", logger.FieldClass, span.name)
			continue
		}
		d.Classes = append(d.Classes, buildClass(span.name, text[span.bodyStart:span.end]))
	}

	d.Functions = extractMethods(outside(text, spans))
	return d
}

func (e *Extractor) accepts(name string) bool {
	for _, suffix := range e.suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func extractModulePath(text string) string {
	m := modulePathPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// classSpan covers one class declaration: header at start, body from
// bodyStart up to end.
type classSpan struct {
	name      string
	start     int
	bodyStart int
	end       int
}

// findClassSpans locates every class declaration, accepted or not. A header
// that falls inside a previous declaration's body belongs to that body.
func findClassSpans(text string) []classSpan {
	var spans []classSpan
	consumed := 0

	for _, m := range classHeaderPattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] < consumed {
			continue
		}
		span := classSpan{
			name:      text[m[2]:m[3]],
			start:     m[0],
			bodyStart: m[1],
			end:       bodyEnd(text, m[0], m[1]),
		}
		spans = append(spans, span)
		consumed = span.end
	}
	return spans
}

// bodyEnd finds where a class body closes: the start of the first later line
// indented no deeper than the header line that begins a declaration, or the
// end of the text. Blank and comment lines never close a body.
func bodyEnd(text string, headerStart, bodyStart int) int {
	lineStart := strings.LastIndexByte(text[:headerStart], '\n') + 1
	headerIndent := indentation(text[lineStart:])

	next := strings.IndexByte(text[bodyStart:], '\n')
	if next < 0 {
		return len(text)
	}
	pos := bodyStart + next + 1

	for pos < len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		var line string
		if lineEnd < 0 {
			line = text[pos:]
		} else {
			line = text[pos : pos+lineEnd]
		}

		if strings.TrimSpace(line) != "" &&
			indentation(line) <= headerIndent &&
			declarationLinePattern.MatchString(line) {
			return pos
		}

		if lineEnd < 0 {
			break
		}
		pos += lineEnd + 1
	}
	return len(text)
}

func indentation(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// outside joins the text between class declarations, one segment per line
// group, so module-level declarations can be scanned on their own.
func outside(text string, spans []classSpan) string {
	var b strings.Builder
	prev := 0
	for _, span := range spans {
		b.WriteString(text[prev:span.start])
		b.WriteByte('\n')
		prev = span.end
	}
	b.WriteString(text[prev:])
	return b.String()
}

func buildClass(name, body string) Class {
	return Class{
		Name:        name,
		FullPath:    name,
		Properties:  extractProperties(body),
		Methods:     extractMethods(body),
		Events:      extractEvents(body, strings.Contains(body, markerPublic)),
		IsPublic:    strings.Contains(body, markerPublic),
		IsNative:    strings.Contains(body, markerNative),
		Description: extractDescription(body),
	}
}

// Flags are body-wide: one marker anywhere in body applies to every property.
func extractProperties(body string) []Property {
	isEditable := strings.Contains(body, markerEditable)
	isPublic := strings.Contains(body, markerPublic)

	properties := []Property{}
	for _, m := range propertyPattern.FindAllStringSubmatch(body, -1) {
		properties = append(properties, Property{
			Name:       m[2],
			Type:       strings.TrimSpace(m[4]),
			IsPublic:   isPublic,
			IsEditable: isEditable,
		})
	}
	return properties
}

// Flags are body-wide, as for properties.
func extractMethods(body string) []Method {
	isPublic := strings.Contains(body, markerPublic)
	isNative := strings.Contains(body, markerNative)

	methods := []Method{}
	for _, m := range methodPattern.FindAllStringSubmatch(body, -1) {
		returnType := m[5]
		if i := strings.IndexByte(returnType, '='); i >= 0 {
			returnType = returnType[:i]
		}
		methods = append(methods, Method{
			Name:       m[1],
			ReturnType: strings.TrimSpace(returnType),
			Parameters: parseParameters(m[3]),
			IsPublic:   isPublic,
			IsNative:   isNative,
			Modifiers:  modifiers(m[2] + m[4]),
		})
	}
	return methods
}

func parseParameters(list string) []Parameter {
	params := []Parameter{}
	for _, part := range splitTopLevel(list) {
		m := parameterPattern.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		params = append(params, Parameter{
			Name: m[1],
			Type: strings.TrimSpace(m[2]),
		})
	}
	return params
}

// splitTopLevel splits on commas that are not nested inside (), [], {} or <>.
func splitTopLevel(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}

	var parts []string
	depth, start := 0, 0
	for i, r := range list {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, list[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, list[start:])
}

func modifiers(specifiers string) []string {
	mods := []string{}
	for _, m := range specifierPattern.FindAllStringSubmatch(specifiers, -1) {
		tag := strings.TrimSpace(m[1])
		if tag == "" || flagSpecifiers[tag] {
			continue
		}
		mods = append(mods, tag)
	}
	return mods
}

func extractEvents(text string, isPublic bool) []Event {
	events := []Event{}
	for _, m := range eventPattern.FindAllStringSubmatch(text, -1) {
		events = append(events, Event{
			Name:      m[1],
			EventType: strings.TrimSpace(m[3]),
			IsPublic:  isPublic,
		})
	}
	return events
}

func extractDescription(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(trimmed[1:])
		}
	}
	return ""
}
