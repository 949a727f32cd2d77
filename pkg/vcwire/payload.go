package vcwire

import (
	"errors"
	"fmt"
	"strconv"
)

// TypeName tags the encoding of a payload field value.
type TypeName string

const (
	TypeInt32  TypeName = "Int32"
	TypeString TypeName = "String"
)

var ErrFieldType = errors.New("payload field type mismatch")

// Field is one typed entry of an envelope payload. Data is always the string
// encoding of the value; TypeName governs how it is decoded.
type Field struct {
	Key      string   `json:"Key"`
	TypeName TypeName `json:"TypeName"`
	Data     string   `json:"Data"`
}

func Int32Field(key string, v int32) Field {
	return Field{Key: key, TypeName: TypeInt32, Data: strconv.FormatInt(int64(v), 10)}
}

func StringField(key string, v string) Field {
	return Field{Key: key, TypeName: TypeString, Data: v}
}

// Value is a decoded payload entry. Fields with an unrecognized TypeName keep
// their raw string form so unknown entries survive a decode/encode round trip.
type Value struct {
	Key      string
	TypeName TypeName
	Int      int32
	Str      string
	Raw      string
	Known    bool
}

// Payload is an ordered sequence of decoded fields with key lookup helpers.
type Payload struct {
	Values []Value
}

// ParsePayload decodes fields honoring each TypeName. Order is preserved.
// An Int32 field whose Data does not parse is a decode error; unknown type
// names are preserved opaquely, not rejected.
func ParsePayload(fields []Field) (*Payload, error) {
	p := &Payload{Values: make([]Value, 0, len(fields))}
	for _, f := range fields {
		v := Value{Key: f.Key, TypeName: f.TypeName, Raw: f.Data}
		switch f.TypeName {
		case TypeInt32:
			n, err := strconv.ParseInt(f.Data, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w: %v", f.Key, ErrFieldType, err)
			}
			v.Int = int32(n)
			v.Known = true
		case TypeString:
			v.Str = f.Data
			v.Known = true
		default:
			// forward compatibility: carry the raw value through
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

func (p *Payload) lookup(key string) (Value, bool) {
	for _, v := range p.Values {
		if v.Key == key {
			return v, true
		}
	}
	return Value{}, false
}

// Int32 returns the decoded Int32 value for key, or 0 if absent or not Int32.
func (p *Payload) Int32(key string) int32 {
	if v, ok := p.lookup(key); ok && v.TypeName == TypeInt32 {
		return v.Int
	}
	return 0
}

// String returns the decoded String value for key, or "" if absent.
func (p *Payload) String(key string) string {
	if v, ok := p.lookup(key); ok && v.TypeName == TypeString {
		return v.Str
	}
	return ""
}

// Fields re-encodes the payload, reproducing unknown entries byte for byte.
func (p *Payload) Fields() []Field {
	out := make([]Field, 0, len(p.Values))
	for _, v := range p.Values {
		switch {
		case v.Known && v.TypeName == TypeInt32:
			out = append(out, Int32Field(v.Key, v.Int))
		case v.Known && v.TypeName == TypeString:
			out = append(out, StringField(v.Key, v.Str))
		default:
			out = append(out, Field{Key: v.Key, TypeName: v.TypeName, Data: v.Raw})
		}
	}
	return out
}
