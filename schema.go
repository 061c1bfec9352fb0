package grapht

import (
	"github.com/iancoleman/strcase"
)

// TypeKind classifies an entry in the synthesized type dictionary.
type TypeKind int

const (
	KindObject TypeKind = iota
	KindInput
	KindRel
	KindUnion
)

// PropertyKind identifies how a schema field is resolved at request time.
// Resolver dispatch is a total match on this taxonomy.
type PropertyKind int

const (
	// PropScalar is a static scalar field read from the entity's field
	// map.
	PropScalar PropertyKind = iota
	// PropDynamicScalar is a scalar computed by a registered prop
	// resolver.
	PropDynamicScalar
	// PropInput marks a field of an input object; it carries nested
	// arguments and is never resolved directly.
	PropInput
	// PropObject is a nested object resolved by sub-query.
	PropObject
	// PropUnion is a union-typed destination field.
	PropUnion
	// PropRel is a relationship projection field.
	PropRel
	// PropNodeCreateMutation through PropNodeDeleteMutation are
	// root-level node CRUD endpoints.
	PropNodeCreateMutation
	PropNodeUpdateMutation
	PropNodeDeleteMutation
	// PropRelCreateMutation through PropRelDeleteMutation are root-level
	// relationship CRUD endpoints.
	PropRelCreateMutation
	PropRelUpdateMutation
	PropRelDeleteMutation
	// PropCustomResolver dispatches to a registered endpoint resolver by
	// name.
	PropCustomResolver
	// PropVersionQuery is the static _version field.
	PropVersionQuery
)

// Property describes one field of a synthesized type: how it is resolved,
// the type it references, and the argument it accepts.
type Property struct {
	Name     string
	Kind     PropertyKind
	TypeName string
	Required bool
	List     bool

	// InputName, when non-empty, is the input type of the field's single
	// "input" argument; InputRequired marks the argument non-null.
	InputName     string
	InputRequired bool

	// Resolver and Validator name registered functions for DynamicScalar
	// fields and validated scalar properties.
	Resolver  string
	Validator string

	// RelName carries the relationship name for Rel and Rel*Mutation
	// kinds; SrcLabel carries the node label for NodeDeleteMutation and
	// the source label for Rel*Mutation kinds.
	RelName  string
	SrcLabel string
}

// NodeTypeDef is one entry in the schema's type dictionary. Types
// reference each other by name through the dictionary, never by embedded
// ownership, so the cyclic type graph resolves lazily.
type NodeTypeDef struct {
	Name       string
	Kind       TypeKind
	Props      map[string]*Property
	UnionTypes []string
}

// Prop returns the named property or a SchemaItemNotFound error.
func (nt *NodeTypeDef) Prop(name string) (*Property, error) {
	p, ok := nt.Props[name]
	if !ok {
		return nil, NewError(ErrSchemaItemNotFound, "%s::%s", nt.Name, name)
	}
	return p, nil
}

// Info carries the full type dictionary together with the name of the
// type currently being processed. Visitors re-point Info at the type they
// descend into while sharing the dictionary.
type Info struct {
	Name     string
	TypeDefs map[string]*NodeTypeDef
}

// NewInfo creates an Info focused on the named type.
func NewInfo(name string, typeDefs map[string]*NodeTypeDef) *Info {
	return &Info{Name: name, TypeDefs: typeDefs}
}

// TypeDef returns the definition of the focused type.
func (i *Info) TypeDef() (*NodeTypeDef, error) {
	return i.TypeDefByName(i.Name)
}

// TypeDefByName returns the named definition or a SchemaItemNotFound
// error.
func (i *Info) TypeDefByName(name string) (*NodeTypeDef, error) {
	nt, ok := i.TypeDefs[name]
	if !ok {
		return nil, NewError(ErrSchemaItemNotFound, "%s", name)
	}
	return nt, nil
}

// For returns an Info focused on another type, sharing the dictionary.
func (i *Info) For(name string) *Info {
	return &Info{Name: name, TypeDefs: i.TypeDefs}
}

// relPrefix joins a type name and a TitleCased relationship name, the stem
// of every relationship-scoped type name.
func relPrefix(typeName, relName string) string {
	return typeName + strcase.ToCamel(relName)
}

// generateProps maps scalar property declarations into schema Properties.
// When id is true an ID property is added; when object is true required
// flags are honored (inputs relax every field to optional).
func generateProps(props []PropConfig, id, object bool) map[string]*Property {
	pm := map[string]*Property{}
	if id {
		pm["id"] = &Property{Name: "id", Kind: PropScalar, TypeName: "ID", Required: object}
	}
	for i := range props {
		p := props[i]
		kind := PropScalar
		if p.Resolver != "" {
			kind = PropDynamicScalar
		}
		pm[p.Name] = &Property{
			Name:      p.Name,
			Kind:      kind,
			TypeName:  p.Type,
			Required:  p.Required && object,
			List:      p.List,
			Resolver:  p.Resolver,
			Validator: p.Validator,
		}
	}
	return pm
}

// generateNodeObject synthesizes the node object type:
//
//	type Project {
//	    id: ID!
//	    name: String
//	    owner(input: ProjectOwnerQueryInput): ProjectOwnerRel
//	}
func generateNodeObject(t *TypeConfig) *NodeTypeDef {
	props := generateProps(t.Props, true, true)
	for i := range t.Rels {
		r := &t.Rels[i]
		props[r.Name] = &Property{
			Name:      r.Name,
			Kind:      PropRel,
			TypeName:  relPrefix(t.Name, r.Name) + "Rel",
			List:      r.List,
			InputName: relPrefix(t.Name, r.Name) + "QueryInput",
			RelName:   r.Name,
		}
	}
	return &NodeTypeDef{Name: t.Name, Kind: KindObject, Props: props}
}

// generateNodeQueryInput synthesizes the node filter input:
//
//	input ProjectQueryInput {
//	    id: IDQueryInput
//	    name: StringQueryInput
//	    owner: ProjectOwnerQueryInput
//	}
func generateNodeQueryInput(t *TypeConfig) *NodeTypeDef {
	props := generateProps(t.Props, true, false)
	for i := range t.Rels {
		r := &t.Rels[i]
		props[r.Name] = &Property{
			Name:     r.Name,
			Kind:     PropInput,
			TypeName: relPrefix(t.Name, r.Name) + "QueryInput",
			List:     r.List,
			RelName:  r.Name,
		}
	}
	return &NodeTypeDef{Name: t.Name + "QueryInput", Kind: KindInput, Props: props}
}

// generateNodeCreateMutationInput synthesizes the create payload:
//
//	input ProjectCreateMutationInput {
//	    name: String
//	    owner: ProjectOwnerCreateMutationInput
//	}
func generateNodeCreateMutationInput(t *TypeConfig) *NodeTypeDef {
	props := generateProps(t.Props, false, false)
	for i := range t.Rels {
		r := &t.Rels[i]
		props[r.Name] = &Property{
			Name:     r.Name,
			Kind:     PropInput,
			TypeName: relPrefix(t.Name, r.Name) + "CreateMutationInput",
			List:     r.List,
			RelName:  r.Name,
		}
	}
	return &NodeTypeDef{Name: t.Name + "CreateMutationInput", Kind: KindInput, Props: props}
}

// generateNodeUpdateMutationInput synthesizes the update payload, whose
// relationship fields take change inputs:
//
//	input ProjectUpdateMutationInput {
//	    name: String
//	    owner: ProjectOwnerChangeInput
//	}
func generateNodeUpdateMutationInput(t *TypeConfig) *NodeTypeDef {
	props := generateProps(t.Props, false, false)
	for i := range t.Rels {
		r := &t.Rels[i]
		props[r.Name] = &Property{
			Name:     r.Name,
			Kind:     PropInput,
			TypeName: relPrefix(t.Name, r.Name) + "ChangeInput",
			List:     r.List,
			RelName:  r.Name,
		}
	}
	return &NodeTypeDef{Name: t.Name + "UpdateMutationInput", Kind: KindInput, Props: props}
}

// generateNodeInput synthesizes the either/or input used where a
// relationship endpoint may link an existing node or create a new one:
//
//	input UserInput {
//	    EXISTING: UserQueryInput
//	    NEW: UserCreateMutationInput
//	}
func generateNodeInput(t *TypeConfig) *NodeTypeDef {
	props := map[string]*Property{
		"EXISTING": {Name: "EXISTING", Kind: PropInput, TypeName: t.Name + "QueryInput"},
		"NEW":      {Name: "NEW", Kind: PropInput, TypeName: t.Name + "CreateMutationInput"},
	}
	return &NodeTypeDef{Name: t.Name + "Input", Kind: KindInput, Props: props}
}

// generateNodeUpdateInput synthesizes the composite update input:
//
//	input ProjectUpdateInput {
//	    match: ProjectQueryInput
//	    modify: ProjectUpdateMutationInput
//	}
func generateNodeUpdateInput(t *TypeConfig) *NodeTypeDef {
	props := map[string]*Property{
		"match":  {Name: "match", Kind: PropInput, TypeName: t.Name + "QueryInput"},
		"modify": {Name: "modify", Kind: PropInput, TypeName: t.Name + "UpdateMutationInput"},
	}
	return &NodeTypeDef{Name: t.Name + "UpdateInput", Kind: KindInput, Props: props}
}

// generateNodeDeleteInput synthesizes the composite delete input:
//
//	input ProjectDeleteInput {
//	    match: ProjectQueryInput
//	    delete: ProjectDeleteMutationInput
//	}
func generateNodeDeleteInput(t *TypeConfig) *NodeTypeDef {
	props := map[string]*Property{
		"match":  {Name: "match", Kind: PropInput, TypeName: t.Name + "QueryInput"},
		"delete": {Name: "delete", Kind: PropInput, TypeName: t.Name + "DeleteMutationInput"},
	}
	return &NodeTypeDef{Name: t.Name + "DeleteInput", Kind: KindInput, Props: props}
}

// generateNodeDeleteMutationInput synthesizes the cascade carrier:
//
//	input ProjectDeleteMutationInput {
//	    force: Boolean
//	    owner: ProjectOwnerDeleteInput
//	}
func generateNodeDeleteMutationInput(t *TypeConfig) *NodeTypeDef {
	props := map[string]*Property{
		"force": {Name: "force", Kind: PropScalar, TypeName: "Boolean"},
	}
	for i := range t.Rels {
		r := &t.Rels[i]
		props[r.Name] = &Property{
			Name:     r.Name,
			Kind:     PropInput,
			TypeName: relPrefix(t.Name, r.Name) + "DeleteInput",
			List:     r.List,
			RelName:  r.Name,
		}
	}
	return &NodeTypeDef{Name: t.Name + "DeleteMutationInput", Kind: KindInput, Props: props}
}

// generateRelObject synthesizes the relationship object:
//
//	type ProjectOwnerRel {
//	    id: ID!
//	    props: ProjectOwnerProps
//	    src: Project!
//	    dst: ProjectOwnerNodesUnion!
//	}
//
// The props field is present only when the relationship declares
// properties.
func generateRelObject(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	props := map[string]*Property{
		"id":  {Name: "id", Kind: PropScalar, TypeName: "ID", Required: true},
		"src": {Name: "src", Kind: PropObject, TypeName: t.Name, Required: true},
		"dst": {Name: "dst", Kind: PropUnion, TypeName: relPrefix(t.Name, r.Name) + "NodesUnion", Required: true},
	}
	if len(r.Props) > 0 {
		props["props"] = &Property{Name: "props", Kind: PropObject, TypeName: relPrefix(t.Name, r.Name) + "Props"}
	}
	return &NodeTypeDef{Name: relPrefix(t.Name, r.Name) + "Rel", Kind: KindRel, Props: props}
}

// generateRelPropsObject synthesizes the relationship-props object,
// emitted only when the relationship declares properties.
func generateRelPropsObject(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	return &NodeTypeDef{
		Name:  relPrefix(t.Name, r.Name) + "Props",
		Kind:  KindObject,
		Props: generateProps(r.Props, false, true),
	}
}

// generateRelNodesUnion synthesizes the destination union:
//
//	union ProjectIssuesNodesUnion = Feature | Bug
func generateRelNodesUnion(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	return &NodeTypeDef{
		Name:       relPrefix(t.Name, r.Name) + "NodesUnion",
		Kind:       KindUnion,
		Props:      map[string]*Property{},
		UnionTypes: append([]string{}, r.Nodes...),
	}
}

// generateRelQueryInput synthesizes the relationship filter:
//
//	input ProjectOwnerQueryInput {
//	    id: IDQueryInput
//	    props: ProjectOwnerPropsInput
//	    src: ProjectOwnerSrcQueryInput
//	    dst: ProjectOwnerDstQueryInput
//	}
func generateRelQueryInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	prefix := relPrefix(t.Name, r.Name)
	props := map[string]*Property{
		"id":  {Name: "id", Kind: PropScalar, TypeName: "ID"},
		"src": {Name: "src", Kind: PropInput, TypeName: prefix + "SrcQueryInput"},
		"dst": {Name: "dst", Kind: PropInput, TypeName: prefix + "DstQueryInput"},
	}
	if len(r.Props) > 0 {
		props["props"] = &Property{Name: "props", Kind: PropInput, TypeName: prefix + "PropsInput"}
	}
	return &NodeTypeDef{Name: prefix + "QueryInput", Kind: KindInput, Props: props}
}

// generateRelCreateMutationInput synthesizes the relationship create
// payload:
//
//	input ProjectOwnerCreateMutationInput {
//	    props: ProjectOwnerPropsInput
//	    dst: ProjectOwnerNodesMutationInputUnion!
//	}
func generateRelCreateMutationInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	prefix := relPrefix(t.Name, r.Name)
	props := map[string]*Property{
		"dst": {Name: "dst", Kind: PropInput, TypeName: prefix + "NodesMutationInputUnion", Required: true},
	}
	if len(r.Props) > 0 {
		props["props"] = &Property{Name: "props", Kind: PropInput, TypeName: prefix + "PropsInput"}
	}
	return &NodeTypeDef{Name: prefix + "CreateMutationInput", Kind: KindInput, Props: props}
}

// generateRelChangeInput synthesizes the tagged change input used inside
// node updates:
//
//	input ProjectIssuesChangeInput {
//	    ADD: ProjectIssuesCreateMutationInput
//	    UPDATE: ProjectIssuesUpdateInput
//	    DELETE: ProjectIssuesDeleteInput
//	}
func generateRelChangeInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	prefix := relPrefix(t.Name, r.Name)
	props := map[string]*Property{
		"ADD":    {Name: "ADD", Kind: PropInput, TypeName: prefix + "CreateMutationInput"},
		"UPDATE": {Name: "UPDATE", Kind: PropInput, TypeName: prefix + "UpdateInput"},
		"DELETE": {Name: "DELETE", Kind: PropInput, TypeName: prefix + "DeleteInput"},
	}
	return &NodeTypeDef{Name: prefix + "ChangeInput", Kind: KindInput, Props: props}
}

// generateRelUpdateMutationInput synthesizes the relationship update
// payload:
//
//	input ProjectOwnerUpdateMutationInput {
//	    props: ProjectOwnerPropsInput
//	    src: ProjectOwnerSrcUpdateMutationInput
//	    dst: ProjectOwnerDstUpdateMutationInput
//	}
func generateRelUpdateMutationInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	prefix := relPrefix(t.Name, r.Name)
	props := map[string]*Property{
		"src": {Name: "src", Kind: PropInput, TypeName: prefix + "SrcUpdateMutationInput"},
		"dst": {Name: "dst", Kind: PropInput, TypeName: prefix + "DstUpdateMutationInput"},
	}
	if len(r.Props) > 0 {
		props["props"] = &Property{Name: "props", Kind: PropInput, TypeName: prefix + "PropsInput"}
	}
	return &NodeTypeDef{Name: prefix + "UpdateMutationInput", Kind: KindInput, Props: props}
}

// generateRelPropsInput synthesizes the relationship property payload.
func generateRelPropsInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	return &NodeTypeDef{
		Name:  relPrefix(t.Name, r.Name) + "PropsInput",
		Kind:  KindInput,
		Props: generateProps(r.Props, false, false),
	}
}

// generateRelSrcQueryInput synthesizes the source-side filter carrier,
// keyed by the single source type name:
//
//	input ProjectOwnerSrcQueryInput {
//	    Project: ProjectQueryInput
//	}
func generateRelSrcQueryInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	props := map[string]*Property{
		t.Name: {Name: t.Name, Kind: PropInput, TypeName: t.Name + "QueryInput"},
	}
	return &NodeTypeDef{Name: relPrefix(t.Name, r.Name) + "SrcQueryInput", Kind: KindInput, Props: props}
}

// generateRelDstQueryInput synthesizes the destination-side filter
// carrier, keyed by each allowed destination type:
//
//	input ProjectOwnerDstQueryInput {
//	    User: UserQueryInput
//	}
func generateRelDstQueryInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	props := map[string]*Property{}
	for _, node := range r.Nodes {
		props[node] = &Property{Name: node, Kind: PropInput, TypeName: node + "QueryInput"}
	}
	return &NodeTypeDef{Name: relPrefix(t.Name, r.Name) + "DstQueryInput", Kind: KindInput, Props: props}
}

// generateRelSrcUpdateMutationInput synthesizes the source-side update
// carrier.
func generateRelSrcUpdateMutationInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	props := map[string]*Property{
		t.Name: {Name: t.Name, Kind: PropInput, TypeName: t.Name + "UpdateMutationInput"},
	}
	return &NodeTypeDef{Name: relPrefix(t.Name, r.Name) + "SrcUpdateMutationInput", Kind: KindInput, Props: props}
}

// generateRelDstUpdateMutationInput synthesizes the destination-side
// update carrier.
func generateRelDstUpdateMutationInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	props := map[string]*Property{}
	for _, node := range r.Nodes {
		props[node] = &Property{Name: node, Kind: PropInput, TypeName: node + "UpdateMutationInput"}
	}
	return &NodeTypeDef{Name: relPrefix(t.Name, r.Name) + "DstUpdateMutationInput", Kind: KindInput, Props: props}
}

// generateRelSrcDeleteMutationInput synthesizes the source-side delete
// cascade carrier.
func generateRelSrcDeleteMutationInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	props := map[string]*Property{
		t.Name: {Name: t.Name, Kind: PropInput, TypeName: t.Name + "DeleteMutationInput"},
	}
	return &NodeTypeDef{Name: relPrefix(t.Name, r.Name) + "SrcDeleteMutationInput", Kind: KindInput, Props: props}
}

// generateRelDstDeleteMutationInput synthesizes the destination-side
// delete cascade carrier.
func generateRelDstDeleteMutationInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	props := map[string]*Property{}
	for _, node := range r.Nodes {
		props[node] = &Property{Name: node, Kind: PropInput, TypeName: node + "DeleteMutationInput"}
	}
	return &NodeTypeDef{Name: relPrefix(t.Name, r.Name) + "DstDeleteMutationInput", Kind: KindInput, Props: props}
}

// generateRelNodesMutationInputUnion synthesizes the destination chooser
// for relationship creation, keyed by each allowed destination type:
//
//	input ProjectOwnerNodesMutationInputUnion {
//	    User: UserInput
//	}
func generateRelNodesMutationInputUnion(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	props := map[string]*Property{}
	for _, node := range r.Nodes {
		props[node] = &Property{Name: node, Kind: PropInput, TypeName: node + "Input"}
	}
	return &NodeTypeDef{Name: relPrefix(t.Name, r.Name) + "NodesMutationInputUnion", Kind: KindInput, Props: props}
}

// generateRelCreateInput synthesizes the composite relationship create
// input:
//
//	input ProjectOwnerCreateInput {
//	    match: ProjectQueryInput
//	    create: ProjectOwnerCreateMutationInput
//	}
func generateRelCreateInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	prefix := relPrefix(t.Name, r.Name)
	props := map[string]*Property{
		"match":  {Name: "match", Kind: PropInput, TypeName: t.Name + "QueryInput"},
		"create": {Name: "create", Kind: PropInput, TypeName: prefix + "CreateMutationInput", List: r.List},
	}
	return &NodeTypeDef{Name: prefix + "CreateInput", Kind: KindInput, Props: props}
}

// generateRelUpdateInput synthesizes the composite relationship update
// input:
//
//	input ProjectOwnerUpdateInput {
//	    match: ProjectOwnerQueryInput
//	    update: ProjectOwnerUpdateMutationInput!
//	}
func generateRelUpdateInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	prefix := relPrefix(t.Name, r.Name)
	props := map[string]*Property{
		"match":  {Name: "match", Kind: PropInput, TypeName: prefix + "QueryInput"},
		"update": {Name: "update", Kind: PropInput, TypeName: prefix + "UpdateMutationInput", Required: true},
	}
	return &NodeTypeDef{Name: prefix + "UpdateInput", Kind: KindInput, Props: props}
}

// generateRelDeleteInput synthesizes the composite relationship delete
// input:
//
//	input ProjectOwnerDeleteInput {
//	    match: ProjectOwnerQueryInput
//	    src: ProjectOwnerSrcDeleteMutationInput
//	    dst: ProjectOwnerDstDeleteMutationInput
//	}
func generateRelDeleteInput(t *TypeConfig, r *RelConfig) *NodeTypeDef {
	prefix := relPrefix(t.Name, r.Name)
	props := map[string]*Property{
		"match": {Name: "match", Kind: PropInput, TypeName: prefix + "QueryInput"},
		"src":   {Name: "src", Kind: PropInput, TypeName: prefix + "SrcDeleteMutationInput"},
		"dst":   {Name: "dst", Kind: PropInput, TypeName: prefix + "DstDeleteMutationInput"},
	}
	return &NodeTypeDef{Name: prefix + "DeleteInput", Kind: KindInput, Props: props}
}

// Root endpoint properties.

func generateNodeReadEndpoint(t *TypeConfig) *Property {
	return &Property{
		Name:      t.Name,
		Kind:      PropObject,
		TypeName:  t.Name,
		List:      true,
		InputName: t.Name + "QueryInput",
	}
}

func generateNodeCreateEndpoint(t *TypeConfig) *Property {
	return &Property{
		Name:          t.Name + "Create",
		Kind:          PropNodeCreateMutation,
		TypeName:      t.Name,
		InputName:     t.Name + "CreateMutationInput",
		InputRequired: true,
	}
}

func generateNodeUpdateEndpoint(t *TypeConfig) *Property {
	return &Property{
		Name:          t.Name + "Update",
		Kind:          PropNodeUpdateMutation,
		TypeName:      t.Name,
		List:          true,
		InputName:     t.Name + "UpdateInput",
		InputRequired: true,
	}
}

func generateNodeDeleteEndpoint(t *TypeConfig) *Property {
	return &Property{
		Name:          t.Name + "Delete",
		Kind:          PropNodeDeleteMutation,
		TypeName:      "Int",
		SrcLabel:      t.Name,
		InputName:     t.Name + "DeleteInput",
		InputRequired: true,
	}
}

func generateRelReadEndpoint(t *TypeConfig, r *RelConfig) *Property {
	prefix := relPrefix(t.Name, r.Name)
	return &Property{
		Name:      prefix,
		Kind:      PropRel,
		TypeName:  prefix + "Rel",
		List:      true,
		InputName: prefix + "QueryInput",
		RelName:   r.Name,
		SrcLabel:  t.Name,
	}
}

func generateRelCreateEndpoint(t *TypeConfig, r *RelConfig) *Property {
	prefix := relPrefix(t.Name, r.Name)
	return &Property{
		Name:          prefix + "Create",
		Kind:          PropRelCreateMutation,
		TypeName:      prefix + "Rel",
		List:          r.List,
		InputName:     prefix + "CreateInput",
		InputRequired: true,
		RelName:       r.Name,
		SrcLabel:      t.Name,
	}
}

func generateRelUpdateEndpoint(t *TypeConfig, r *RelConfig) *Property {
	prefix := relPrefix(t.Name, r.Name)
	return &Property{
		Name:          prefix + "Update",
		Kind:          PropRelUpdateMutation,
		TypeName:      prefix + "Rel",
		List:          true,
		InputName:     prefix + "UpdateInput",
		InputRequired: true,
		RelName:       r.Name,
		SrcLabel:      t.Name,
	}
}

func generateRelDeleteEndpoint(t *TypeConfig, r *RelConfig) *Property {
	prefix := relPrefix(t.Name, r.Name)
	return &Property{
		Name:          prefix + "Delete",
		Kind:          PropRelDeleteMutation,
		TypeName:      "Int",
		InputName:     prefix + "DeleteInput",
		InputRequired: true,
		RelName:       r.Name,
		SrcLabel:      t.Name,
	}
}

// generateCustomEndpoint maps a configured endpoint into a root property
// dispatched to the registered resolver of the same name.
func generateCustomEndpoint(e *EndpointConfig) *Property {
	p := &Property{
		Name:     e.Name,
		Kind:     PropCustomResolver,
		TypeName: e.Output.TypeName(),
		Required: e.Output.Required,
		List:     e.Output.List,
	}
	if e.Input != nil {
		p.InputName = e.Input.TypeName()
		p.InputRequired = e.Input.Required
	}
	return p
}

// generateCustomEndpointInput maps an inline custom input type into an
// input typedef. Relationship fields reference the relationship's filter
// input, so a custom input can reuse model filters.
func generateCustomEndpointInput(t *TypeConfig) *NodeTypeDef {
	props := generateProps(t.Props, false, false)
	for i := range t.Rels {
		r := &t.Rels[i]
		props[r.Name] = &Property{
			Name:     r.Name,
			Kind:     PropInput,
			TypeName: relPrefix(t.Name, r.Name) + "QueryInput",
			List:     r.List,
			RelName:  r.Name,
		}
	}
	return &NodeTypeDef{Name: t.Name, Kind: KindInput, Props: props}
}

func generateStaticVersionQuery() *Property {
	return &Property{Name: "_version", Kind: PropVersionQuery, TypeName: "String"}
}

// GenerateTypeDefs synthesizes the full type dictionary for a validated
// configuration, including the root Query and Mutation entries. The
// dictionary is built once and shared read-only by every request.
func GenerateTypeDefs(c *Config) map[string]*NodeTypeDef {
	defs := map[string]*NodeTypeDef{}
	queryProps := map[string]*Property{}
	mutationProps := map[string]*Property{}

	add := func(nt *NodeTypeDef) {
		defs[nt.Name] = nt
	}

	for i := range c.Model {
		t := &c.Model[i]

		add(generateNodeObject(t))
		add(generateNodeQueryInput(t))
		add(generateNodeCreateMutationInput(t))
		add(generateNodeUpdateMutationInput(t))
		add(generateNodeInput(t))
		add(generateNodeUpdateInput(t))
		add(generateNodeDeleteInput(t))
		add(generateNodeDeleteMutationInput(t))

		filter := t.Filter()
		if filter.Read {
			p := generateNodeReadEndpoint(t)
			queryProps[p.Name] = p
		}
		if filter.Create {
			p := generateNodeCreateEndpoint(t)
			mutationProps[p.Name] = p
		}
		if filter.Update {
			p := generateNodeUpdateEndpoint(t)
			mutationProps[p.Name] = p
		}
		if filter.Delete {
			p := generateNodeDeleteEndpoint(t)
			mutationProps[p.Name] = p
		}

		for j := range t.Rels {
			r := &t.Rels[j]

			add(generateRelObject(t, r))
			if len(r.Props) > 0 {
				add(generateRelPropsObject(t, r))
				add(generateRelPropsInput(t, r))
			}
			add(generateRelNodesUnion(t, r))
			add(generateRelQueryInput(t, r))
			add(generateRelCreateMutationInput(t, r))
			add(generateRelChangeInput(t, r))
			add(generateRelUpdateMutationInput(t, r))
			add(generateRelSrcQueryInput(t, r))
			add(generateRelDstQueryInput(t, r))
			add(generateRelSrcUpdateMutationInput(t, r))
			add(generateRelDstUpdateMutationInput(t, r))
			add(generateRelSrcDeleteMutationInput(t, r))
			add(generateRelDstDeleteMutationInput(t, r))
			add(generateRelNodesMutationInputUnion(t, r))
			add(generateRelCreateInput(t, r))
			add(generateRelUpdateInput(t, r))
			add(generateRelDeleteInput(t, r))

			rf := r.Filter()
			if rf.Read {
				p := generateRelReadEndpoint(t, r)
				queryProps[p.Name] = p
			}
			if rf.Create {
				p := generateRelCreateEndpoint(t, r)
				mutationProps[p.Name] = p
			}
			if rf.Update {
				p := generateRelUpdateEndpoint(t, r)
				mutationProps[p.Name] = p
			}
			if rf.Delete {
				p := generateRelDeleteEndpoint(t, r)
				mutationProps[p.Name] = p
			}
		}
	}

	for i := range c.Endpoints {
		e := &c.Endpoints[i]
		p := generateCustomEndpoint(e)
		switch e.Class {
		case EndpointMutation:
			mutationProps[p.Name] = p
		default:
			queryProps[p.Name] = p
		}

		if e.Input != nil && e.Input.Custom != nil {
			add(generateCustomEndpointInput(e.Input.Custom))
		}
		if e.Output.Custom != nil {
			add(generateNodeObject(e.Output.Custom))
		}
	}

	queryProps["_version"] = generateStaticVersionQuery()

	add(&NodeTypeDef{Name: "Query", Kind: KindObject, Props: queryProps})
	add(&NodeTypeDef{Name: "Mutation", Kind: KindObject, Props: mutationProps})

	return defs
}
