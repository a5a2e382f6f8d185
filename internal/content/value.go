package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// PropertyType is the declared type of a property value.
type PropertyType int

const (
	TypeUndefined PropertyType = iota
	TypeString
	TypeLong
	TypeDouble
	TypeDecimal
	TypeDate
	TypeBoolean
	TypeBinary
	TypeName
	TypePath
	TypeReference
	TypeWeakReference
	TypeURI
)

var propertyTypeNames = map[PropertyType]string{
	TypeUndefined:     "Undefined",
	TypeString:        "String",
	TypeLong:          "Long",
	TypeDouble:        "Double",
	TypeDecimal:       "Decimal",
	TypeDate:          "Date",
	TypeBoolean:       "Boolean",
	TypeBinary:        "Binary",
	TypeName:          "Name",
	TypePath:          "Path",
	TypeReference:     "Reference",
	TypeWeakReference: "WeakReference",
	TypeURI:           "URI",
}

func (t PropertyType) String() string {
	if s, ok := propertyTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("PropertyType(%d)", int(t))
}

// ParsePropertyType is the inverse of PropertyType.String.
func ParsePropertyType(s string) (PropertyType, error) {
	for t, name := range propertyTypeNames {
		if name == s {
			return t, nil
		}
	}
	return TypeUndefined, fmt.Errorf("unknown property type %q", s)
}

// IsStringLike reports whether values of t compare and hash as strings.
func (t PropertyType) IsStringLike() bool {
	switch t {
	case TypeString, TypeName, TypePath, TypeReference, TypeWeakReference, TypeURI:
		return true
	}
	return false
}

// IsNumeric reports whether t is one of the numeric types.
func (t PropertyType) IsNumeric() bool {
	return t == TypeLong || t == TypeDouble || t == TypeDecimal
}

// DateLayout is the fixed-width UTC form dates are stored and bound in.
// Fixed width keeps lexical order equal to chronological order.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Value is a sealed interface over typed property values.
type Value interface {
	Type() PropertyType
	String() string
	value()
}

// StringValue carries every string-like type: String, Name, Path,
// Reference, WeakReference and URI.
type StringValue struct {
	Kind PropertyType
	S    string
}

func (StringValue) value() {}

func (v StringValue) Type() PropertyType {
	if v.Kind == TypeUndefined {
		return TypeString
	}
	return v.Kind
}

func (v StringValue) String() string { return v.S }

// LongValue is a 64-bit integer.
type LongValue int64

func (LongValue) value() {}
func (LongValue) Type() PropertyType { return TypeLong }
func (v LongValue) String() string { return strconv.FormatInt(int64(v), 10) }

// DoubleValue is a 64-bit float.
type DoubleValue float64

func (DoubleValue) value() {}
func (DoubleValue) Type() PropertyType { return TypeDouble }
func (v DoubleValue) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }

// DecimalValue is an arbitrary precision decimal.
type DecimalValue struct {
	D *apd.Decimal
}

func (DecimalValue) value() {}
func (DecimalValue) Type() PropertyType { return TypeDecimal }

func (v DecimalValue) String() string {
	if v.D == nil {
		return "0"
	}
	return v.D.String()
}

// Float64 returns the nearest float, used where the backend stores numbers.
func (v DecimalValue) Float64() float64 {
	if v.D == nil {
		return 0
	}
	f, err := v.D.Float64()
	if err != nil {
		return 0
	}
	return f
}

// DateValue is an instant with millisecond precision.
type DateValue struct {
	T time.Time
}

func (DateValue) value() {}
func (DateValue) Type() PropertyType { return TypeDate }
func (v DateValue) String() string { return v.T.UTC().Format(DateLayout) }

// BooleanValue is a boolean.
type BooleanValue bool

func (BooleanValue) value() {}
func (BooleanValue) Type() PropertyType { return TypeBoolean }
func (v BooleanValue) String() string { return strconv.FormatBool(bool(v)) }

// Opener opens a fresh reader over binary content. Callers own the reader.
type Opener func() (io.ReadCloser, error)

// BinaryValue references binary content without holding it in memory.
// Key identifies the blob in its backing store.
type BinaryValue struct {
	Key  string
	Size int64
	Open Opener
}

func (BinaryValue) value() {}
func (BinaryValue) Type() PropertyType { return TypeBinary }
func (v BinaryValue) String() string { return v.Key }

// NewString returns a String value.
func NewString(s string) Value { return StringValue{Kind: TypeString, S: s} }

// NewName returns a Name value.
func NewName(s string) Value { return StringValue{Kind: TypeName, S: s} }

// NewPath returns a Path value.
func NewPath(s string) Value { return StringValue{Kind: TypePath, S: s} }

// NewReference returns a Reference value.
func NewReference(s string) Value { return StringValue{Kind: TypeReference, S: s} }

// NewWeakReference returns a WeakReference value.
func NewWeakReference(s string) Value { return StringValue{Kind: TypeWeakReference, S: s} }

// NewURI returns a URI value.
func NewURI(s string) Value { return StringValue{Kind: TypeURI, S: s} }

// NewDate truncates t to milliseconds.
func NewDate(t time.Time) Value { return DateValue{T: t.UTC().Truncate(time.Millisecond)} }

// NewDecimal parses a decimal literal.
func NewDecimal(s string) (Value, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("decimal %q: %w", s, err)
	}
	return DecimalValue{D: d}, nil
}

// NewBytes wraps an in-memory blob as a binary value.
func NewBytes(key string, data []byte) Value {
	buf := append([]byte(nil), data...)
	return BinaryValue{
		Key:  key,
		Size: int64(len(buf)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		},
	}
}

// ParseValue decodes the string form of a value of type t. Binary values
// cannot be parsed from text.
func ParseValue(t PropertyType, s string) (Value, error) {
	switch t {
	case TypeString, TypeUndefined:
		return NewString(s), nil
	case TypeName, TypePath, TypeReference, TypeWeakReference, TypeURI:
		return StringValue{Kind: t, S: s}, nil
	case TypeLong:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("long %q: %w", s, err)
		}
		return LongValue(n), nil
	case TypeDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("double %q: %w", s, err)
		}
		return DoubleValue(f), nil
	case TypeDecimal:
		return NewDecimal(s)
	case TypeDate:
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", s, err)
		}
		return NewDate(ts), nil
	case TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("boolean %q: %w", s, err)
		}
		return BooleanValue(b), nil
	default:
		return nil, fmt.Errorf("cannot parse %s value from text", t)
	}
}

// Native converts v into the plain Go value used for JSON storage and SQL
// parameters: string, int64, float64 or bool. Both query dialects and the
// store go through this one function so bound values keep identical types.
func Native(v Value) any {
	switch val := v.(type) {
	case StringValue:
		return val.S
	case LongValue:
		return int64(val)
	case DoubleValue:
		return float64(val)
	case DecimalValue:
		return val.Float64()
	case DateValue:
		return val.String()
	case BooleanValue:
		return bool(val)
	case BinaryValue:
		return val.Key
	default:
		return nil
	}
}

// FromNative is the inverse of Native for a declared type. JSON numbers
// arrive as float64 and are narrowed per type.
func FromNative(t PropertyType, raw any) (Value, error) {
	switch t {
	case TypeLong:
		switch n := raw.(type) {
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("long %q: %w", n, err)
			}
			return LongValue(i), nil
		case float64:
			return LongValue(int64(n)), nil
		case int64:
			return LongValue(n), nil
		case int:
			return LongValue(int64(n)), nil
		}
	case TypeDouble:
		switch n := raw.(type) {
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("double %q: %w", n, err)
			}
			return DoubleValue(f), nil
		case float64:
			return DoubleValue(n), nil
		case int64:
			return DoubleValue(float64(n)), nil
		case int:
			return DoubleValue(float64(n)), nil
		}
	case TypeDecimal:
		switch n := raw.(type) {
		case json.Number:
			return NewDecimal(n.String())
		case string:
			return NewDecimal(n)
		case float64:
			return NewDecimal(strconv.FormatFloat(n, 'f', -1, 64))
		}
	case TypeBoolean:
		if b, ok := raw.(bool); ok {
			return BooleanValue(b), nil
		}
	case TypeBinary:
		if s, ok := raw.(string); ok {
			return BinaryValue{Key: s}, nil
		}
	default:
		switch s := raw.(type) {
		case string:
			return ParseValue(t, s)
		case bool:
			return ParseValue(t, strconv.FormatBool(s))
		case float64:
			return ParseValue(t, strconv.FormatFloat(s, 'f', -1, 64))
		}
	}
	return nil, fmt.Errorf("cannot decode %T as %s", raw, t)
}
