package ir

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FromGo converts a native Go value into an IRValue.
//
// Supported inputs: nil, IRValue, string, bool, all int and uint kinds,
// float32/float64 (as decimals), decimal.Decimal, time.Time (as datetime),
// []any and map[string]any. Anything else is rejected so that no value
// reaches the query text without a known literal form.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("uint64 %d overflows int64", val)
		}
		return IRInt(val), nil
	case float32:
		return NewIRDecimal(decimal.NewFromFloat32(val)), nil
	case float64:
		return NewIRDecimal(decimal.NewFromFloat(val)), nil
	case decimal.Decimal:
		return NewIRDecimal(val), nil
	case time.Time:
		return NewIRDateTime(val), nil
	case []string:
		arr := make(IRArray, len(val))
		for i, s := range val {
			arr[i] = IRString(s)
		}
		return arr, nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MustFromGo is FromGo for values known to be supported. It panics otherwise.
func MustFromGo(v any) IRValue {
	val, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return val
}

// ToGo converts an IRValue back into plain Go values: string, int64, bool,
// decimal.Decimal, time.Time, []any, map[string]any or nil.
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRDecimal:
		return val.Decimal
	case IRDate:
		return val.Time
	case IRDateTime:
		return val.Time
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}
