package ir

// IdentityField is the guaranteed-unique identity column of every remote object.
// It is also the dialect's stand-in for a wildcard: COUNT(*) becomes COUNT(Id).
const IdentityField = "Id"

// Type tags for declared fields.
const (
	TypeString   = "string"
	TypeInt      = "int"
	TypeDecimal  = "decimal"
	TypeBool     = "bool"
	TypeDate     = "date"
	TypeDateTime = "datetime"
)

// ValidFieldTypes defines allowed declared field types.
var ValidFieldTypes = map[string]bool{
	TypeString:   true,
	TypeInt:      true,
	TypeDecimal:  true,
	TypeBool:     true,
	TypeDate:     true,
	TypeDateTime: true,
}

// Entity describes one remote object type: its table name, declared fields
// in declaration order and its belongs-to associations.
type Entity struct {
	Name      string        `json:"name"`
	Fields    []Field       `json:"fields"`
	BelongsTo []Association `json:"belongs_to,omitempty"`
}

// Field is a declared column with its type tag.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Association is a belongs-to relationship: ForeignKey on this entity holds
// the Id of a record of type Entity.
type Association struct {
	Name       string `json:"name"`
	Entity     string `json:"entity"`
	ForeignKey string `json:"foreign_key"`
}

// NewEntity builds an Entity whose field list always starts with the identity
// field typed as string. A caller-declared Id is folded into that first slot.
func NewEntity(name string, fields []Field, belongsTo ...Association) *Entity {
	out := make([]Field, 0, len(fields)+1)
	out = append(out, Field{Name: IdentityField, Type: TypeString})
	for _, f := range fields {
		if f.Name == IdentityField {
			continue
		}
		out = append(out, f)
	}
	return &Entity{Name: name, Fields: out, BelongsTo: belongsTo}
}

// FieldNames returns declared field names in declaration order.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the declared field with the given name.
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether name is a declared field.
func (e *Entity) HasField(name string) bool {
	_, ok := e.Field(name)
	return ok
}

// Association returns the belongs-to association with the given name.
func (e *Entity) Association(name string) (Association, bool) {
	for _, a := range e.BelongsTo {
		if a.Name == name {
			return a, true
		}
	}
	return Association{}, false
}

// Catalog maps entity names to their declarations.
type Catalog map[string]*Entity

// NewCatalog indexes entities by name. Later entries replace earlier ones.
func NewCatalog(entities ...*Entity) Catalog {
	c := make(Catalog, len(entities))
	for _, e := range entities {
		c[e.Name] = e
	}
	return c
}

// Lookup returns the named entity, or an identity-only declaration when the
// catalog has none, so callers can still project Id.
func (c Catalog) Lookup(name string) (*Entity, bool) {
	if e, ok := c[name]; ok {
		return e, true
	}
	return NewEntity(name, nil), false
}
