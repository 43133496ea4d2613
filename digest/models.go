// Package digest extracts a typed class model from Verse digest files
// (*.digest.verse), the declarative listings that describe the public surface
// of a native Verse library.
//
// Extraction is heuristic: token shapes are matched with regular expressions
// over raw text. There is no grammar and no type resolution. Regions that
// match no pattern are skipped without error.
package digest

// Digest is the result of extracting one digest document.
type Digest struct {
	ModulePath string   `json:"module_path"`
	Classes    []Class  `json:"classes"`
	Functions  []Method `json:"functions"` // Declarations outside every accepted class
	Events     []Event  `json:"events"`    // Every listenable in the document
}

// Class is a device or component class found in a digest.
type Class struct {
	Name        string     `json:"name"`
	FullPath    string     `json:"full_path"` // Same as Name, no namespace resolution
	Properties  []Property `json:"properties"`
	Methods     []Method   `json:"methods"`
	Events      []Event    `json:"events"`
	IsNative    bool       `json:"is_native"`
	IsPublic    bool       `json:"is_public"`
	Description string     `json:"description"`
}

// Property is a `var` member of a class.
type Property struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	IsPublic    bool   `json:"is_public"`
	IsEditable  bool   `json:"is_editable"`
	Description string `json:"description"`
}

// Method is a function declaration, either a class member or a module-level function.
type Method struct {
	Name        string      `json:"name"`
	ReturnType  string      `json:"return_type"`
	Parameters  []Parameter `json:"parameters"`
	IsNative    bool        `json:"is_native"`
	IsPublic    bool        `json:"is_public"`
	Description string      `json:"description"`
	Modifiers   []string    `json:"modifiers"` // override, suspends, decides, ...
}

// Parameter is one named parameter of a Method.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Event is a listenable signal.
type Event struct {
	Name        string `json:"name"`
	EventType   string `json:"event_type"` // Payload type text
	IsPublic    bool   `json:"is_public"`
	Description string `json:"description"`
}

// FindClass returns the class with the given name, or nil.
func (d *Digest) FindClass(name string) *Class {
	for i := range d.Classes {
		if d.Classes[i].Name == name {
			return &d.Classes[i]
		}
	}
	return nil
}

// Signature renders the method as `Name(a:int, b:string):void`.
func (m Method) Signature() string {
	s := m.Name + "("
	for i, p := range m.Parameters {
		if i > 0 {
			s += ", "
		}
		s += p.Name + ":" + p.Type
	}
	return s + "):" + m.ReturnType
}
