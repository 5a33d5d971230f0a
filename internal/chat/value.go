package chat

import (
	"encoding/json"
	"fmt"
)

// ValueKind tags the JSON type carried by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a tagged union for function-call arguments, which arrive as
// mixed-type JSON objects. Only scalars and null are representable;
// nested structures are rejected at decode time.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Null() Value            { return Value{Kind: KindNull} }

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindNull:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(t)
	case float64:
		*v = Number(t)
	case bool:
		*v = Bool(t)
	default:
		return fmt.Errorf("unsupported argument type %T", t)
	}
	return nil
}

// FunctionCall is a model-requested action with scalar arguments.
type FunctionCall struct {
	Name      string           `json:"name"`
	Arguments map[string]Value `json:"arguments"`
}
