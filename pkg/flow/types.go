// Package flow holds the wire model shared by the compiler, the control
// plane, and the declaration front ends: literal types and values,
// interfaces, bindings, identifiers, and the serialized templates.
package flow

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SimpleType is a scalar literal type.
type SimpleType string

const (
	SimpleNone     SimpleType = "none"
	SimpleInteger  SimpleType = "integer"
	SimpleFloat    SimpleType = "float"
	SimpleString   SimpleType = "string"
	SimpleBoolean  SimpleType = "boolean"
	SimpleDatetime SimpleType = "datetime"
	SimpleDuration SimpleType = "duration"
	SimpleBlob     SimpleType = "blob"
	SimpleAny      SimpleType = "any"
)

// LiteralType describes the shape of a Literal. Exactly one of Simple,
// CollectionType and MapValueType is set.
type LiteralType struct {
	Simple         SimpleType   `json:"simple,omitempty" yaml:"simple,omitempty"`
	CollectionType *LiteralType `json:"collection_type,omitempty" yaml:"collection_type,omitempty"`
	MapValueType   *LiteralType `json:"map_value_type,omitempty" yaml:"map_value_type,omitempty"`
}

// Simple returns a scalar LiteralType.
func Simple(s SimpleType) LiteralType {
	return LiteralType{Simple: s}
}

// CollectionOf returns a collection type with the given element type.
func CollectionOf(elem LiteralType) LiteralType {
	return LiteralType{CollectionType: &elem}
}

// MapOf returns a string-keyed map type with the given value type.
func MapOf(value LiteralType) LiteralType {
	return LiteralType{MapValueType: &value}
}

// IsAny reports whether t accepts every literal.
func (t LiteralType) IsAny() bool {
	return t.Simple == SimpleAny
}

// IsZero reports whether t is the unset type.
func (t LiteralType) IsZero() bool {
	return t.Simple == "" && t.CollectionType == nil && t.MapValueType == nil
}

func (t LiteralType) String() string {
	switch {
	case t.CollectionType != nil:
		return "list<" + t.CollectionType.String() + ">"
	case t.MapValueType != nil:
		return "map<" + t.MapValueType.String() + ">"
	case t.Simple != "":
		return string(t.Simple)
	default:
		return "unset"
	}
}

// Equal reports structural equality.
func (t LiteralType) Equal(o LiteralType) bool {
	switch {
	case t.CollectionType != nil || o.CollectionType != nil:
		return t.CollectionType != nil && o.CollectionType != nil && t.CollectionType.Equal(*o.CollectionType)
	case t.MapValueType != nil || o.MapValueType != nil:
		return t.MapValueType != nil && o.MapValueType != nil && t.MapValueType.Equal(*o.MapValueType)
	default:
		return t.Simple == o.Simple
	}
}

// Compatible reports whether a value of type actual may be bound to a
// variable declared as declared. Integers widen to floats; any matches
// everything in both directions.
func Compatible(declared, actual LiteralType) bool {
	if declared.IsAny() || actual.IsAny() {
		return true
	}
	switch {
	case declared.CollectionType != nil:
		return actual.CollectionType != nil && Compatible(*declared.CollectionType, *actual.CollectionType)
	case declared.MapValueType != nil:
		return actual.MapValueType != nil && Compatible(*declared.MapValueType, *actual.MapValueType)
	}
	if actual.CollectionType != nil || actual.MapValueType != nil {
		return false
	}
	if declared.Simple == SimpleFloat && actual.Simple == SimpleInteger {
		return true
	}
	return declared.Simple == actual.Simple
}

// Accepts reports whether the literal l conforms to t.
func (t LiteralType) Accepts(l Literal) bool {
	if t.IsAny() {
		return true
	}
	switch {
	case t.CollectionType != nil:
		if l.Collection == nil {
			return false
		}
		for _, item := range l.Collection.Literals {
			if !t.CollectionType.Accepts(item) {
				return false
			}
		}
		return true
	case t.MapValueType != nil:
		if l.Map == nil {
			return false
		}
		for _, item := range l.Map.Literals {
			if !t.MapValueType.Accepts(item) {
				return false
			}
		}
		return true
	}
	if l.Scalar == nil {
		return false
	}
	kind := l.Scalar.Kind()
	if t.Simple == SimpleFloat && kind == SimpleInteger {
		return true
	}
	return kind == t.Simple
}

var typeAliases = map[string]SimpleType{
	"none":     SimpleNone,
	"null":     SimpleNone,
	"int":      SimpleInteger,
	"integer":  SimpleInteger,
	"float":    SimpleFloat,
	"double":   SimpleFloat,
	"str":      SimpleString,
	"string":   SimpleString,
	"bool":     SimpleBoolean,
	"boolean":  SimpleBoolean,
	"datetime": SimpleDatetime,
	"duration": SimpleDuration,
	"blob":     SimpleBlob,
	"file":     SimpleBlob,
	"any":      SimpleAny,
}

// ParseType parses the textual type syntax used in declaration files:
// a scalar name ("int", "string", ...), "list<T>", or "map<T>"
// ("map<string, T>" is accepted as well).
func ParseType(s string) (LiteralType, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "list<") && strings.HasSuffix(lower, ">"):
		elem, err := ParseType(s[len("list<") : len(s)-1])
		if err != nil {
			return LiteralType{}, err
		}
		return CollectionOf(elem), nil
	case strings.HasPrefix(lower, "map<") && strings.HasSuffix(lower, ">"):
		inner := s[len("map<") : len(s)-1]
		if key, value, ok := strings.Cut(inner, ","); ok {
			if k := strings.ToLower(strings.TrimSpace(key)); k != "string" && k != "str" {
				return LiteralType{}, fmt.Errorf("map keys must be strings, got %q", strings.TrimSpace(key))
			}
			inner = value
		}
		v, err := ParseType(inner)
		if err != nil {
			return LiteralType{}, err
		}
		return MapOf(v), nil
	}
	if st, ok := typeAliases[lower]; ok {
		return Simple(st), nil
	}
	return LiteralType{}, fmt.Errorf("unknown type %q", s)
}

// Blob is a reference to an opaque object by URI.
type Blob struct {
	URI string `json:"uri" yaml:"uri"`
}

// Void marks the none scalar.
type Void struct{}

// Scalar holds exactly one primitive value.
type Scalar struct {
	Integer  *int64         `json:"integer,omitempty" yaml:"integer,omitempty"`
	Float    *float64       `json:"float,omitempty" yaml:"float,omitempty"`
	String   *string        `json:"string,omitempty" yaml:"string,omitempty"`
	Boolean  *bool          `json:"boolean,omitempty" yaml:"boolean,omitempty"`
	Datetime *time.Time     `json:"datetime,omitempty" yaml:"datetime,omitempty"`
	Duration *time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Blob     *Blob          `json:"blob,omitempty" yaml:"blob,omitempty"`
	None     *Void          `json:"none,omitempty" yaml:"none,omitempty"`
}

// Kind returns the SimpleType of the populated field.
func (s Scalar) Kind() SimpleType {
	switch {
	case s.Integer != nil:
		return SimpleInteger
	case s.Float != nil:
		return SimpleFloat
	case s.String != nil:
		return SimpleString
	case s.Boolean != nil:
		return SimpleBoolean
	case s.Datetime != nil:
		return SimpleDatetime
	case s.Duration != nil:
		return SimpleDuration
	case s.Blob != nil:
		return SimpleBlob
	default:
		return SimpleNone
	}
}

// LiteralCollection is an ordered list of literals.
type LiteralCollection struct {
	Literals []Literal `json:"literals" yaml:"literals"`
}

// LiteralMap is a string-keyed map of literals.
type LiteralMap struct {
	Literals map[string]Literal `json:"literals" yaml:"literals"`
}

// Literal is a concrete value. Exactly one field is set.
type Literal struct {
	Scalar     *Scalar            `json:"scalar,omitempty" yaml:"scalar,omitempty"`
	Collection *LiteralCollection `json:"collection,omitempty" yaml:"collection,omitempty"`
	Map        *LiteralMap        `json:"map,omitempty" yaml:"map,omitempty"`
}

func IntLiteral(v int64) Literal { return Literal{Scalar: &Scalar{Integer: &v}} }
func FloatLiteral(v float64) Literal { return Literal{Scalar: &Scalar{Float: &v}} }
func StringLiteral(v string) Literal { return Literal{Scalar: &Scalar{String: &v}} }
func BoolLiteral(v bool) Literal { return Literal{Scalar: &Scalar{Boolean: &v}} }
func DatetimeLiteral(v time.Time) Literal { return Literal{Scalar: &Scalar{Datetime: &v}} }
func DurationLiteral(v time.Duration) Literal { return Literal{Scalar: &Scalar{Duration: &v}} }
func BlobLiteral(uri string) Literal { return Literal{Scalar: &Scalar{Blob: &Blob{URI: uri}}} }
func NoneLiteral() Literal { return Literal{Scalar: &Scalar{None: &Void{}}} }

// CollectionLiteral builds a collection literal.
func CollectionLiteral(items ...Literal) Literal {
	if items == nil {
		items = []Literal{}
	}
	return Literal{Collection: &LiteralCollection{Literals: items}}
}

// MapLiteral builds a map literal.
func MapLiteral(items map[string]Literal) Literal {
	if items == nil {
		items = map[string]Literal{}
	}
	return Literal{Map: &LiteralMap{Literals: items}}
}

// Type infers the narrowest LiteralType describing l. Empty or mixed
// collections and maps get an "any" element type.
func (l Literal) Type() LiteralType {
	switch {
	case l.Collection != nil:
		return CollectionOf(commonType(l.Collection.Literals))
	case l.Map != nil:
		vals := make([]Literal, 0, len(l.Map.Literals))
		for _, v := range l.Map.Literals {
			vals = append(vals, v)
		}
		return MapOf(commonType(vals))
	case l.Scalar != nil:
		return Simple(l.Scalar.Kind())
	default:
		return Simple(SimpleNone)
	}
}

func commonType(items []Literal) LiteralType {
	if len(items) == 0 {
		return Simple(SimpleAny)
	}
	t := items[0].Type()
	for _, item := range items[1:] {
		if !t.Equal(item.Type()) {
			return Simple(SimpleAny)
		}
	}
	return t
}

// LiteralFromGo converts a decoded YAML/JSON value into a Literal.
func LiteralFromGo(v any) (Literal, error) {
	switch val := v.(type) {
	case nil:
		return NoneLiteral(), nil
	case Literal:
		return val, nil
	case int:
		return IntLiteral(int64(val)), nil
	case int32:
		return IntLiteral(int64(val)), nil
	case int64:
		return IntLiteral(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return Literal{}, fmt.Errorf("integer %d overflows int64", val)
		}
		return IntLiteral(int64(val)), nil
	case float32:
		return FloatLiteral(float64(val)), nil
	case float64:
		return FloatLiteral(val), nil
	case string:
		return StringLiteral(val), nil
	case bool:
		return BoolLiteral(val), nil
	case time.Time:
		return DatetimeLiteral(val), nil
	case time.Duration:
		return DurationLiteral(val), nil
	case []any:
		items := make([]Literal, 0, len(val))
		for i, item := range val {
			l, err := LiteralFromGo(item)
			if err != nil {
				return Literal{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, l)
		}
		return CollectionLiteral(items...), nil
	case map[string]any:
		items := make(map[string]Literal, len(val))
		for k, item := range val {
			l, err := LiteralFromGo(item)
			if err != nil {
				return Literal{}, fmt.Errorf("[%s]: %w", k, err)
			}
			items[k] = l
		}
		return MapLiteral(items), nil
	default:
		return Literal{}, fmt.Errorf("unsupported literal value of type %T", v)
	}
}

// PackLiteral converts v into a Literal of type t, using t to interpret
// strings as datetimes, durations, or blob URIs and to widen integers.
// The result is guaranteed to be accepted by t.
func PackLiteral(v any, t LiteralType) (Literal, error) {
	if l, ok := v.(Literal); ok {
		if !t.Accepts(l) {
			return Literal{}, fmt.Errorf("value of type %s is not accepted by %s", l.Type(), t)
		}
		return l, nil
	}
	switch {
	case t.CollectionType != nil:
		list, ok := v.([]any)
		if !ok {
			return Literal{}, fmt.Errorf("expected a list for %s, got %T", t, v)
		}
		items := make([]Literal, 0, len(list))
		for i, item := range list {
			l, err := PackLiteral(item, *t.CollectionType)
			if err != nil {
				return Literal{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, l)
		}
		return CollectionLiteral(items...), nil
	case t.MapValueType != nil:
		m, ok := v.(map[string]any)
		if !ok {
			return Literal{}, fmt.Errorf("expected a map for %s, got %T", t, v)
		}
		items := make(map[string]Literal, len(m))
		for k, item := range m {
			l, err := PackLiteral(item, *t.MapValueType)
			if err != nil {
				return Literal{}, fmt.Errorf("[%s]: %w", k, err)
			}
			items[k] = l
		}
		return MapLiteral(items), nil
	}
	if s, ok := v.(string); ok {
		switch t.Simple {
		case SimpleDatetime:
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return Literal{}, fmt.Errorf("parse datetime %q: %w", s, err)
			}
			return DatetimeLiteral(ts), nil
		case SimpleDuration:
			d, err := time.ParseDuration(s)
			if err != nil {
				return Literal{}, fmt.Errorf("parse duration %q: %w", s, err)
			}
			return DurationLiteral(d), nil
		case SimpleBlob:
			return BlobLiteral(s), nil
		}
	}
	l, err := LiteralFromGo(v)
	if err != nil {
		return Literal{}, err
	}
	if t.Simple == SimpleFloat && l.Scalar != nil && l.Scalar.Integer != nil {
		return FloatLiteral(float64(*l.Scalar.Integer)), nil
	}
	if !t.Accepts(l) {
		return Literal{}, fmt.Errorf("value of type %s is not accepted by %s", l.Type(), t)
	}
	return l, nil
}
