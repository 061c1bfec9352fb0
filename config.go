package grapht

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// GraphQL scalar type names. User types and custom endpoint types may not
// reuse these names, and ID is additionally reserved as a property name.
var scalarNames = map[string]bool{
	"Int":     true,
	"Float":   true,
	"String":  true,
	"Boolean": true,
	"ID":      true,
}

// Config is the parsed data-model document from which the schema is
// synthesized. It is built once, validated, and shared read-only by every
// request.
type Config struct {
	Version   int              `yaml:"version" validate:"required"`
	Model     []TypeConfig     `yaml:"model" validate:"dive"`
	Endpoints []EndpointConfig `yaml:"endpoints" validate:"dive"`
}

// TypeConfig declares one node type: its scalar properties, its outgoing
// relationships, and the CRUD endpoints synthesized for it.
type TypeConfig struct {
	Name      string           `yaml:"name" validate:"required"`
	Props     []PropConfig     `yaml:"props" validate:"dive"`
	Rels      []RelConfig      `yaml:"rels" validate:"dive"`
	Endpoints *EndpointsFilter `yaml:"endpoints"`
}

// Filter returns the type's visibility filter, defaulting to all
// operations when the document omits the endpoints block.
func (t *TypeConfig) Filter() EndpointsFilter {
	if t.Endpoints == nil {
		return AllEndpoints()
	}
	return *t.Endpoints
}

// PropConfig declares one scalar property.
type PropConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Type      string `yaml:"type" validate:"required,oneof=Int Float String Boolean ID"`
	Required  bool   `yaml:"required"`
	List      bool   `yaml:"list"`
	Resolver  string `yaml:"resolver"`
	Validator string `yaml:"validator"`
}

// RelConfig declares one relationship: its cardinality, the set of
// allowed destination types, its own properties, and its endpoint
// visibility.
type RelConfig struct {
	Name      string           `yaml:"name" validate:"required"`
	List      bool             `yaml:"list"`
	Nodes     []string         `yaml:"nodes" validate:"min=1"`
	Props     []PropConfig     `yaml:"props" validate:"dive"`
	Endpoints *EndpointsFilter `yaml:"endpoints"`
}

// Filter returns the relationship's visibility filter, defaulting to all
// operations.
func (r *RelConfig) Filter() EndpointsFilter {
	if r.Endpoints == nil {
		return AllEndpoints()
	}
	return *r.Endpoints
}

// EndpointsFilter controls which root endpoints are synthesized for a
// type or relationship.
type EndpointsFilter struct {
	Read   bool `yaml:"read"`
	Create bool `yaml:"create"`
	Update bool `yaml:"update"`
	Delete bool `yaml:"delete"`
}

// AllEndpoints returns a filter permitting every operation.
func AllEndpoints() EndpointsFilter {
	return EndpointsFilter{Read: true, Create: true, Update: true, Delete: true}
}

// NoEndpoints returns a filter permitting no operations.
func NoEndpoints() EndpointsFilter {
	return EndpointsFilter{}
}

// UnmarshalYAML decodes a filter where omitted keys default to true, so a
// document can switch off individual operations without re-stating the
// rest.
func (f *EndpointsFilter) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		Read   *bool `yaml:"read"`
		Create *bool `yaml:"create"`
		Update *bool `yaml:"update"`
		Delete *bool `yaml:"delete"`
	}{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*f = AllEndpoints()
	if raw.Read != nil {
		f.Read = *raw.Read
	}
	if raw.Create != nil {
		f.Create = *raw.Create
	}
	if raw.Update != nil {
		f.Update = *raw.Update
	}
	if raw.Delete != nil {
		f.Delete = *raw.Delete
	}
	return nil
}

// EndpointClass places a custom endpoint under the root Query or the root
// Mutation type.
type EndpointClass string

const (
	EndpointQuery    EndpointClass = "Query"
	EndpointMutation EndpointClass = "Mutation"
)

// EndpointConfig declares one custom root endpoint, resolved by a
// registered resolver of the same name.
type EndpointConfig struct {
	Name   string              `yaml:"name" validate:"required"`
	Class  EndpointClass       `yaml:"class" validate:"required,oneof=Query Mutation"`
	Input  *EndpointTypeConfig `yaml:"input"`
	Output *EndpointTypeConfig `yaml:"output" validate:"required"`
}

// EndpointTypeConfig is a type specification for a custom endpoint's
// input or output: exactly one of Scalar (a GraphQL scalar name),
// Existing (a model type name), or Custom (an inline type definition).
type EndpointTypeConfig struct {
	Scalar   string      `yaml:"scalar"`
	Existing string      `yaml:"existing"`
	Custom   *TypeConfig `yaml:"custom"`
	Required bool        `yaml:"required"`
	List     bool        `yaml:"list"`
}

// TypeName resolves the specification to the name used in the schema.
func (e *EndpointTypeConfig) TypeName() string {
	switch {
	case e.Scalar != "":
		return e.Scalar
	case e.Existing != "":
		return e.Existing
	case e.Custom != nil:
		return e.Custom.Name
	default:
		return ""
	}
}

// LoadConfig reads and parses a data-model document from a file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(ErrConfigNotFound, err, "%s", path)
	}
	return ParseConfig(data)
}

// ParseConfig parses a data-model document.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, WrapError(ErrConfigDeserialization, err, "cannot parse configuration")
	}
	return &c, nil
}

// ComposeDir loads every *.yml and *.yaml file in dir and composes them
// into a single configuration.
func ComposeDir(dir string) (*Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, WrapError(ErrConfigNotFound, err, "%s", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yml" || ext == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	configs := make([]*Config, 0, len(names))
	for _, name := range names {
		c, err := LoadConfig(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return Compose(configs)
}

// Compose merges several configurations into one. All inputs must share
// the same version; duplicate names are left for Validate to reject so
// that a composed whole is checked in one place.
func Compose(configs []*Config) (*Config, error) {
	if len(configs) == 0 {
		return nil, NewError(ErrConfigNotFound, "no configurations to compose")
	}
	out := &Config{Version: configs[0].Version}
	for _, c := range configs {
		if c.Version != out.Version {
			return nil, NewError(ErrConfigVersionMismatch, "version %d does not match %d", c.Version, out.Version)
		}
		out.Model = append(out.Model, c.Model...)
		out.Endpoints = append(out.Endpoints, c.Endpoints...)
	}
	return out, nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate enforces the configuration invariants: structural completeness
// of the document, unique type and endpoint names, no reserved scalar
// names reused, and no property named ID.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return WrapError(ErrConfigDeserialization, err, "configuration is structurally invalid")
	}

	typeNames := map[string]bool{}
	for i := range c.Model {
		t := &c.Model[i]
		if scalarNames[t.Name] {
			return NewError(ErrConfigTypeScalarName, "type %s reuses a scalar name", t.Name)
		}
		if typeNames[t.Name] {
			return NewError(ErrConfigTypeDuplicate, "type %s is declared more than once", t.Name)
		}
		typeNames[t.Name] = true

		if err := validatePropNames(t.Name, t.Props); err != nil {
			return err
		}
		for j := range t.Rels {
			r := &t.Rels[j]
			if err := validatePropNames(t.Name+"."+r.Name, r.Props); err != nil {
				return err
			}
		}
	}

	endpointNames := map[string]bool{}
	for i := range c.Endpoints {
		e := &c.Endpoints[i]
		if endpointNames[e.Name] {
			return NewError(ErrConfigEndpointDuplicate, "endpoint %s is declared more than once", e.Name)
		}
		endpointNames[e.Name] = true

		if e.Input != nil && e.Input.Custom != nil && scalarNames[e.Input.Custom.Name] {
			return NewError(ErrConfigEndpointInputTypeScalarName, "endpoint %s input type reuses a scalar name", e.Name)
		}
		if e.Output != nil && e.Output.Custom != nil {
			if scalarNames[e.Output.Custom.Name] {
				return NewError(ErrConfigEndpointOutputTypeScalarName, "endpoint %s output type reuses a scalar name", e.Name)
			}
			if err := validatePropNames(e.Output.Custom.Name, e.Output.Custom.Props); err != nil {
				return err
			}
		}
	}

	return nil
}

func validatePropNames(owner string, props []PropConfig) error {
	for i := range props {
		if strings.EqualFold(props[i].Name, "id") {
			return NewError(ErrInvalidPropNameID, "%s declares a property named %s; ids are auto-assigned", owner, props[i].Name)
		}
	}
	return nil
}
