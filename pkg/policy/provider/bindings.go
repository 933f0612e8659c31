package provider

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strconv"
	"unicode/utf8"

	"mercator-hq/saturn/pkg/policy/templates"

	"gopkg.in/yaml.v3"
)

// DefaultMaxFileSize is the largest bindings file accepted.
const DefaultMaxFileSize = 4 << 20

// File is the root of a bindings file.
type File struct {
	Policies []Binding `yaml:"policies"`
}

// Binding applies a policy built from a template to the components its
// selectors match.
type Binding struct {
	// ID uniquely identifies the policy.
	ID string `yaml:"id"`

	// Template names the catalog template the chain is built from.
	Template string `yaml:"template"`

	// Order sorts the applicable policies; lower runs outer. Ties sort by ID.
	Order int `yaml:"order"`

	// PropagateMessageTransformations defaults to true.
	PropagateMessageTransformations *bool `yaml:"propagate_message_transformations,omitempty"`

	Parameters templates.Parameters `yaml:"parameters,omitempty"`

	// Source selects the sources the policy applies to. Nil means none.
	Source *Selector `yaml:"source,omitempty"`

	// Operation selects the operations the policy applies to. Nil means none.
	Operation *Selector `yaml:"operation,omitempty"`
}

// Propagate returns whether the policy propagates message transformations.
func (b Binding) Propagate() bool {
	return b.PropagateMessageTransformations == nil || *b.PropagateMessageTransformations
}

// Selector matches components by identifier and pointcut attributes.
type Selector struct {
	// Namespace must equal the component identifier namespace.
	Namespace string `yaml:"namespace"`

	// Name matches the component identifier name. Empty or "*" matches any.
	Name string `yaml:"name,omitempty"`

	// Attributes are glob patterns the pointcut attributes must match.
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// LoadBindings reads and parses the bindings file at filePath.
func LoadBindings(filePath string, maxSize int64) ([]Binding, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	info, err := os.Stat(filePath)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, &LoadError{FilePath: filePath, Message: "file not found", Cause: err}
		case errors.Is(err, os.ErrPermission):
			return nil, &LoadError{FilePath: filePath, Message: "permission denied", Cause: err}
		default:
			return nil, &LoadError{FilePath: filePath, Message: "failed to access file", Cause: err}
		}
	}

	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: filePath, Message: "not a regular file"}
	}

	if info.Size() > maxSize {
		return nil, &LoadError{
			FilePath: filePath,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), maxSize),
		}
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &LoadError{FilePath: filePath, Message: "failed to read file", Cause: err}
	}

	return ParseBindings(data, filePath)
}

// ParseBindings parses bindings from YAML. filePath is used in errors only.
// Unknown fields are rejected.
func ParseBindings(data []byte, filePath string) ([]Binding, error) {
	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: filePath, Message: "file contains invalid UTF-8 encoding"}
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		pe := &ParseError{FilePath: filePath, Message: err.Error(), Cause: err}
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			pe.Line, _ = strconv.Atoi(m[1])
		}
		return nil, pe
	}

	return file.Policies, nil
}

// ValidateBindings checks bindings against the catalog without building them.
func ValidateBindings(bindings []Binding, catalog *templates.Catalog) error {
	errs := &ErrorList{}
	seen := make(map[string]int, len(bindings))

	for i, b := range bindings {
		field := fmt.Sprintf("policies[%d]", i)

		if b.ID == "" {
			errs.Add(&ValidationError{FieldPath: field + ".id", Message: "id is required"})
		} else if j, dup := seen[b.ID]; dup {
			errs.Add(&ValidationError{PolicyID: b.ID, FieldPath: field + ".id", Message: fmt.Sprintf("duplicates policies[%d]", j)})
		} else {
			seen[b.ID] = i
		}

		if b.Template == "" {
			errs.Add(&ValidationError{PolicyID: b.ID, FieldPath: field + ".template", Message: "template is required"})
		} else if catalog != nil && !catalog.Has(b.Template) {
			errs.Add(&ValidationError{
				PolicyID:  b.ID,
				FieldPath: field + ".template",
				Message:   fmt.Sprintf("unknown template %q", b.Template),
				Cause:     templates.ErrUnknownTemplate,
			})
		}

		if b.Source == nil && b.Operation == nil {
			errs.Add(&ValidationError{PolicyID: b.ID, FieldPath: field, Message: "source or operation selector is required"})
		}
		validateSelector(errs, b.ID, field+".source", b.Source)
		validateSelector(errs, b.ID, field+".operation", b.Operation)
	}

	return errs.ToError()
}

func validateSelector(errs *ErrorList, id, field string, s *Selector) {
	if s == nil {
		return
	}
	if s.Namespace == "" {
		errs.Add(&ValidationError{PolicyID: id, FieldPath: field + ".namespace", Message: "namespace is required"})
	}
	for name, pattern := range s.Attributes {
		if _, err := path.Match(pattern, ""); err != nil {
			errs.Add(&ValidationError{
				PolicyID:  id,
				FieldPath: field + ".attributes." + name,
				Message:   fmt.Sprintf("invalid pattern %q", pattern),
				Cause:     err,
			})
		}
	}
}
