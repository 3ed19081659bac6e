package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// attributesKey is the metadata envelope the remote API attaches to every
// record and every nested relationship object.
const attributesKey = "attributes"

// AggregateResultType is the envelope type of rows returned by aggregate queries.
const AggregateResultType = "AggregateResult"

// RecordAttributes is the metadata envelope of a remote record.
type RecordAttributes struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Record is one row returned by the remote API.
//
// Fields never contain the metadata envelope: decoding moves it into
// Attributes (top level) or drops it (nested relationship objects), so
// row-decoding code can treat Fields as plain column data.
type Record struct {
	Attributes RecordAttributes
	Fields     IRObject
	Order      []string // field names in the order the remote system sent them
}

// NewRecord builds a record of the given type from ordered pairs.
func NewRecord(typ string, pairs ...IRPair) Record {
	r := Record{
		Attributes: RecordAttributes{Type: typ},
		Fields:     make(IRObject, len(pairs)),
		Order:      make([]string, 0, len(pairs)),
	}
	for _, p := range pairs {
		r.Set(p.Key, p.Value)
	}
	return r
}

// Set assigns a field, appending it to Order on first assignment.
func (r *Record) Set(name string, v IRValue) {
	if r.Fields == nil {
		r.Fields = IRObject{}
	}
	if _, exists := r.Fields[name]; !exists {
		r.Order = append(r.Order, name)
	}
	r.Fields[name] = v
}

// Get returns a field value, following dotted relationship paths such as
// "Account.Name" into nested objects. Missing fields return IRNull.
func (r Record) Get(path string) IRValue {
	parts := strings.Split(path, ".")
	var cur IRValue = r.Fields
	for _, p := range parts {
		obj, ok := cur.(IRObject)
		if !ok {
			return IRNull{}
		}
		next, ok := obj[p]
		if !ok {
			return IRNull{}
		}
		cur = next
	}
	return cur
}

// ID returns the identity field as a string, or "" when absent.
func (r Record) ID() string {
	if s, ok := r.Fields[IdentityField].(IRString); ok {
		return string(s)
	}
	return ""
}

// UnmarshalJSON decodes a remote record, preserving field order and
// separating the metadata envelope from the field data.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: expected JSON object, got %v", tok)
	}

	*r = Record{Fields: IRObject{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record: expected string key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record field %q: %w", key, err)
		}

		if key == attributesKey {
			if err := json.Unmarshal(raw, &r.Attributes); err != nil {
				return fmt.Errorf("record attributes: %w", err)
			}
			continue
		}

		val, err := UnmarshalIRValue(raw)
		if err != nil {
			return fmt.Errorf("record field %q: %w", key, err)
		}
		r.Set(key, stripAttributes(val))
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON encodes the record in the remote wire shape: the metadata
// envelope first, then fields in their original order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	attrs, err := json.Marshal(r.Attributes)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"attributes":`)
	buf.Write(attrs)

	for _, k := range r.Order {
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valBytes, err := MarshalIRValue(r.Fields[k])
		if err != nil {
			return nil, fmt.Errorf("record field %q: %w", k, err)
		}
		buf.WriteByte(',')
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// stripAttributes removes the metadata envelope from nested relationship objects.
func stripAttributes(v IRValue) IRValue {
	switch val := v.(type) {
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			if k == attributesKey {
				continue
			}
			out[k] = stripAttributes(elem)
		}
		return out
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = stripAttributes(elem)
		}
		return out
	default:
		return v
	}
}
