// Package lsp serves Verse completion and hover from extracted digests.
package lsp

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/teranos/verseblueprint/digest"
)

var (
	identifierAtEnd = regexp.MustCompile(`[A-Za-z_]\w*$`)
	receiverAtEnd   = regexp.MustCompile(`([A-Za-z_]\w*)\.([A-Za-z_]\w*)?$`)
	// Name : type, as in "@editable Button : button_device = button_device{}"
	typedDeclaration = regexp.MustCompile(`(?m)\b([A-Za-z_]\w*)\s*(?:<[^<>\n]*>)*\s*:\s*([A-Za-z_]\w*)`)
)

// Index answers symbol queries over a set of digests.
type Index struct {
	classes map[string]*digest.Class
	modules map[string]string // class name -> module path
	names   []string
}

// NewIndex indexes the classes of every digest. A class name defined by
// more than one digest keeps its first definition.
func NewIndex(digests ...*digest.Digest) *Index {
	idx := &Index{
		classes: make(map[string]*digest.Class),
		modules: make(map[string]string),
	}
	for _, d := range digests {
		if d == nil {
			continue
		}
		for i := range d.Classes {
			class := &d.Classes[i]
			if _, seen := idx.classes[class.Name]; seen {
				continue
			}
			idx.classes[class.Name] = class
			idx.modules[class.Name] = d.ModulePath
			idx.names = append(idx.names, class.Name)
		}
	}
	sort.Strings(idx.names)
	return idx
}

// IndexFiles extracts every digest file in paths and indexes the result.
func IndexFiles(ex *digest.Extractor, paths []string) (*Index, error) {
	digests := make([]*digest.Digest, 0, len(paths))
	for _, path := range paths {
		d, err := ex.ParseFile(path)
		if err != nil {
			return nil, err
		}
		digests = append(digests, d)
	}
	return NewIndex(digests...), nil
}

// Len is the number of indexed classes
func (idx *Index) Len() int { return len(idx.names) }

// Class looks up a class by exact name.
func (idx *Index) Class(name string) *digest.Class {
	return idx.classes[name]
}

// Complete returns completion items for the cursor at character on line.
// After "X." where X is a class or a variable typed as one, the class
// members are offered; otherwise class names matching the current word.
func (idx *Index) Complete(document, line string, character int) []protocol.CompletionItem {
	before := prefixOf(line, character)

	if m := receiverAtEnd.FindStringSubmatch(before); m != nil {
		if class := idx.resolve(document, m[1]); class != nil {
			return memberItems(class, m[2])
		}
	}

	word := identifierAtEnd.FindString(before)
	items := []protocol.CompletionItem{}
	for _, name := range idx.names {
		if !hasPrefixFold(name, word) {
			continue
		}
		class := idx.classes[name]
		items = append(items, protocol.CompletionItem{
			Label:         name,
			Kind:          kindPtr(protocol.CompletionItemKindClass),
			Detail:        stringPtr(idx.modules[name]),
			Documentation: class.Description,
		})
	}
	return items
}

// Hover describes the identifier under the cursor, or returns "" when it is
// not a known class or member.
func (idx *Index) Hover(document, line string, character int) string {
	start, end := wordBounds(line, character)
	if start == end {
		return ""
	}
	runes := []rune(line)
	word := string(runes[start:end])

	if start > 0 && runes[start-1] == '.' {
		receiver := identifierAtEnd.FindString(string(runes[:start-1]))
		if class := idx.resolve(document, receiver); class != nil {
			if doc := memberDoc(class, word); doc != "" {
				return doc
			}
		}
	}

	if class := idx.resolve(document, word); class != nil {
		return idx.classDoc(class)
	}
	return ""
}

// resolve maps a class name, or a variable declared with a class type in
// document, to its class.
func (idx *Index) resolve(document, name string) *digest.Class {
	if name == "" {
		return nil
	}
	if class, ok := idx.classes[name]; ok {
		return class
	}
	for _, m := range typedDeclaration.FindAllStringSubmatch(document, -1) {
		if m[1] == name {
			if class, ok := idx.classes[m[2]]; ok {
				return class
			}
		}
	}
	return nil
}

func memberItems(class *digest.Class, prefix string) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	for _, p := range class.Properties {
		if hasPrefixFold(p.Name, prefix) {
			items = append(items, protocol.CompletionItem{
				Label:         p.Name,
				Kind:          kindPtr(protocol.CompletionItemKindProperty),
				Detail:        stringPtr(p.Type),
				Documentation: p.Description,
			})
		}
	}
	for _, m := range class.Methods {
		if hasPrefixFold(m.Name, prefix) {
			items = append(items, protocol.CompletionItem{
				Label:         m.Name,
				Kind:          kindPtr(protocol.CompletionItemKindMethod),
				Detail:        stringPtr(m.Signature()),
				Documentation: m.Description,
			})
		}
	}
	for _, e := range class.Events {
		if hasPrefixFold(e.Name, prefix) {
			items = append(items, protocol.CompletionItem{
				Label:         e.Name,
				Kind:          kindPtr(protocol.CompletionItemKindEvent),
				Detail:        stringPtr(e.EventType),
				Documentation: e.Description,
			})
		}
	}
	return items
}

func (idx *Index) classDoc(class *digest.Class) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "```verse\n%s := class\n```\n", class.Name)
	if module := idx.modules[class.Name]; module != "" {
		fmt.Fprintf(&sb, "\nModule `%s`\n", module)
	}
	if class.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", class.Description)
	}
	if len(class.Properties)+len(class.Methods)+len(class.Events) > 0 {
		sb.WriteString("\n")
	}
	for _, p := range class.Properties {
		fmt.Fprintf(&sb, "- `%s:%s`\n", p.Name, p.Type)
	}
	for _, m := range class.Methods {
		fmt.Fprintf(&sb, "- `%s`\n", m.Signature())
	}
	for _, e := range class.Events {
		fmt.Fprintf(&sb, "- `%s:listenable(%s)`\n", e.Name, e.EventType)
	}
	return sb.String()
}

func memberDoc(class *digest.Class, name string) string {
	for _, p := range class.Properties {
		if p.Name == name {
			return withDescription(fmt.Sprintf("```verse\n%s.%s:%s\n```", class.Name, p.Name, p.Type), p.Description)
		}
	}
	for _, m := range class.Methods {
		if m.Name == name {
			return withDescription(fmt.Sprintf("```verse\n%s.%s\n```", class.Name, m.Signature()), m.Description)
		}
	}
	for _, e := range class.Events {
		if e.Name == name {
			return withDescription(fmt.Sprintf("```verse\n%s.%s:listenable(%s)\n```", class.Name, e.Name, e.EventType), e.Description)
		}
	}
	return ""
}

func withDescription(code, description string) string {
	if description == "" {
		return code + "\n"
	}
	return code + "\n\n" + description + "\n"
}

// prefixOf returns the text of line before character, counted in UTF-16
// code units as LSP positions are.
func prefixOf(line string, character int) string {
	runes := []rune(line)
	return string(runes[:runeOffset(runes, character)])
}

// wordBounds returns the rune range of the identifier touching the UTF-16
// offset character.
func wordBounds(line string, character int) (int, int) {
	runes := []rune(line)
	start := runeOffset(runes, character)
	end := start
	for start > 0 && isIdentRune(runes[start-1]) {
		start--
	}
	for end < len(runes) && isIdentRune(runes[end]) {
		end++
	}
	return start, end
}

// runeOffset converts a UTF-16 offset into runes to a rune index, clamped to
// the line. An offset inside a surrogate pair rounds up past the rune.
func runeOffset(runes []rune, character int) int {
	units := 0
	for i, r := range runes {
		if units >= character {
			return i
		}
		units += utf16.RuneLen(r)
	}
	return len(runes)
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func kindPtr(k protocol.CompletionItemKind) *protocol.CompletionItemKind {
	return &k
}

func stringPtr(s string) *string {
	return &s
}
