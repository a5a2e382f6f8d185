package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// storedProperty is the JSON form of one property in the props column.
type storedProperty struct {
	Type     string `json:"type"`
	Multiple bool   `json:"multiple,omitempty"`
	Values   []any  `json:"values"`
}

// marshalProps converts node properties to JSON TEXT for storage. The type
// properties live in their own columns and are skipped. Map keys are
// sorted by encoding/json, so equal property sets store identical text.
func marshalProps(props map[string]content.Property) (string, error) {
	m := make(map[string]storedProperty, len(props))
	for name, p := range props {
		if name == content.PropPrimaryType || name == content.PropMixinTypes {
			continue
		}
		sp := storedProperty{Type: p.Type.String(), Multiple: p.Multiple, Values: make([]any, len(p.Values))}
		for i, v := range p.Values {
			if v == nil {
				return "", fmt.Errorf("marshal props: %s[%d] is nil", name, i)
			}
			if v.Type() != p.Type && !(p.Type.IsStringLike() && v.Type().IsStringLike()) {
				return "", fmt.Errorf("marshal props: %s[%d] is %s, property is %s", name, i, v.Type(), p.Type)
			}
			sp.Values[i] = storedValue(v)
		}
		m[name] = sp
	}
	return encodeJSON(m)
}

// storedValue is content.Native except for decimals, which keep their
// exact digits as a JSON number literal.
func storedValue(v content.Value) any {
	if d, ok := v.(content.DecimalValue); ok {
		return json.Number(d.String())
	}
	return content.Native(v)
}

// unmarshalProps parses the props column. Large integers and decimals are
// decoded via json.Number to avoid float64 precision loss.
func unmarshalProps(data string, open func(key string) content.Opener) (map[string]content.Property, error) {
	props := make(map[string]content.Property)
	if data == "" || data == "{}" {
		return props, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var m map[string]storedProperty
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal props: %w", err)
	}
	for name, sp := range m {
		pt, err := content.ParsePropertyType(sp.Type)
		if err != nil {
			return nil, fmt.Errorf("unmarshal props: %s: %w", name, err)
		}
		p := content.Property{Name: name, Type: pt, Multiple: sp.Multiple, Values: make([]content.Value, len(sp.Values))}
		for i, raw := range sp.Values {
			v, err := content.FromNative(pt, raw)
			if err != nil {
				return nil, fmt.Errorf("unmarshal props: %s[%d]: %w", name, i, err)
			}
			if bv, ok := v.(content.BinaryValue); ok && open != nil {
				bv.Open = open(bv.Key)
				v = bv
			}
			p.Values[i] = v
		}
		props[name] = p
	}
	return props, nil
}

func marshalMixins(mixins []string) (string, error) {
	if mixins == nil {
		mixins = []string{}
	}
	return encodeJSON(mixins)
}

func unmarshalMixins(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var mixins []string
	if err := json.Unmarshal([]byte(data), &mixins); err != nil {
		return nil, fmt.Errorf("unmarshal mixins: %w", err)
	}
	return mixins, nil
}

// encodeJSON uses json.Encoder with HTML escaping disabled so stored
// text matches what other tools write for the same data.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}
