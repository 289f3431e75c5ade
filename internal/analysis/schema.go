package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/genai"
)

// Kind is the JSON type of a schema field
type Kind string

const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindInteger Kind = "integer"
)

// Field describes one node of the structured-output contract. The same tree
// is sent with the request and used to validate the response.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Enum        []string
	Items       *Field
	Properties  []*Field
	Required    []string
}

func str(name, description string, enum ...string) *Field {
	return &Field{Name: name, Kind: KindString, Description: description, Enum: enum}
}

func integer(name, description string) *Field {
	return &Field{Name: name, Kind: KindInteger, Description: description}
}

func stringList(name, description string) *Field {
	return &Field{Name: name, Kind: KindArray, Description: description, Items: &Field{Kind: KindString}}
}

func object(name, description string, required []string, properties ...*Field) *Field {
	return &Field{Name: name, Kind: KindObject, Description: description, Properties: properties, Required: required}
}

func array(name, description string, items *Field) *Field {
	return &Field{Name: name, Kind: KindArray, Description: description, Items: items}
}

// Schema returns the analysis contract
func Schema() *Field {
	moduleInsight := object("", "", []string{"path", "type", "description", "dependencies", "potentialIssues"},
		str("path", "File path e.g. src/app.ts"),
		str("type", "", "file", "dir"),
		str("description", "Function of this file"),
		stringList("dependencies", "Internal modules or external libs it depends on"),
		stringList("potentialIssues", "Potential problems or code smells"),
	)

	blueprintFile := object("", "", []string{"path", "content", "description"},
		str("path", ""),
		str("content", ""),
		str("description", ""),
	)

	// Vulnerability items declare no required fields
	vulnerability := object("", "", nil,
		str("severity", "", "Critical", "High", "Medium", "Low"),
		str("type", ""),
		str("description", ""),
	)

	security := object("securityAnalysis", "", []string{"score", "riskLevel", "vulnerabilities", "complianceCheck"},
		integer("score", ""),
		str("riskLevel", "", "Critical", "High", "Moderate", "Low", "Safe"),
		array("vulnerabilities", "", vulnerability),
		stringList("complianceCheck", ""),
	)

	return object("", "", []string{
		"summary", "purpose", "techStack", "keyFeatures", "installation", "complexity", "useCases",
		"innovationScore", "suggestedImprovements", "repoStructure", "projectBlueprint", "securityAnalysis",
	},
		str("summary", "Professional executive summary."),
		str("purpose", "Core problem and solution."),
		stringList("techStack", ""),
		stringList("keyFeatures", ""),
		str("installation", ""),
		str("complexity", "", "Low", "Medium", "High"),
		stringList("useCases", ""),
		integer("innovationScore", ""),
		stringList("suggestedImprovements", ""),
		array("repoStructure", "Detailed analysis of key files/modules.", moduleInsight),
		array("projectBlueprint", "3-4 Essential files to replicate functionality.", blueprintFile),
		security,
	)
}

// ToGenai converts the field tree to a Gemini response schema
func ToGenai(f *Field) *genai.Schema {
	s := &genai.Schema{Description: f.Description}
	switch f.Kind {
	case KindObject:
		s.Type = genai.TypeObject
		s.Properties = make(map[string]*genai.Schema, len(f.Properties))
		s.PropertyOrdering = make([]string, 0, len(f.Properties))
		for _, p := range f.Properties {
			s.Properties[p.Name] = ToGenai(p)
			s.PropertyOrdering = append(s.PropertyOrdering, p.Name)
		}
		s.Required = f.Required
	case KindArray:
		s.Type = genai.TypeArray
		s.Items = ToGenai(f.Items)
	case KindInteger:
		s.Type = genai.TypeInteger
	default:
		s.Type = genai.TypeString
		s.Enum = f.Enum
	}
	return s
}

// ToOpenAI converts the field tree to a JSON Schema definition
func ToOpenAI(f *Field) jsonschema.Definition {
	d := jsonschema.Definition{Description: f.Description}
	switch f.Kind {
	case KindObject:
		d.Type = jsonschema.Object
		d.Properties = make(map[string]jsonschema.Definition, len(f.Properties))
		for _, p := range f.Properties {
			d.Properties[p.Name] = ToOpenAI(p)
		}
		d.Required = f.Required
		d.AdditionalProperties = false
	case KindArray:
		d.Type = jsonschema.Array
		items := ToOpenAI(f.Items)
		d.Items = &items
	case KindInteger:
		d.Type = jsonschema.Integer
	default:
		d.Type = jsonschema.String
		d.Enum = f.Enum
	}
	return d
}

// ValidationError points at the first part of a document that breaks the contract
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Validate checks that raw is a JSON document satisfying f
func Validate(f *Field, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON: trailing data")
	}

	return validateValue(f, doc, "$")
}

func validateValue(f *Field, value any, path string) error {
	switch f.Kind {
	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return &ValidationError{Path: path, Reason: "expected object"}
		}
		for _, name := range f.Required {
			if v, present := obj[name]; !present || v == nil {
				return &ValidationError{Path: path + "." + name, Reason: "required field missing"}
			}
		}
		for _, p := range f.Properties {
			v, present := obj[p.Name]
			if !present || v == nil {
				continue
			}
			if err := validateValue(p, v, path+"."+p.Name); err != nil {
				return err
			}
		}
	case KindArray:
		items, ok := value.([]any)
		if !ok {
			return &ValidationError{Path: path, Reason: "expected array"}
		}
		for i, item := range items {
			if err := validateValue(f.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case KindInteger:
		n, ok := value.(json.Number)
		if !ok {
			return &ValidationError{Path: path, Reason: "expected integer"}
		}
		if _, err := n.Int64(); err != nil {
			return &ValidationError{Path: path, Reason: "expected integer"}
		}
	case KindString:
		s, ok := value.(string)
		if !ok {
			return &ValidationError{Path: path, Reason: "expected string"}
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, s) {
			return &ValidationError{Path: path, Reason: fmt.Sprintf("value %q not in %v", s, f.Enum)}
		}
	}
	return nil
}
