package aggregate

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/roach88/soqlkit/internal/ir"
)

var errNotNumeric = errors.New("not a number")

// castValue converts an aggregate result to the operation's type.
//
//	count     IRInt, NULL as 0
//	sum       IRInt or IRDecimal, NULL as 0
//	avg       IRDecimal, NULL stays NULL
//	min, max  the column's declared type, or the value unchanged
func castValue(op Op, alias, fieldType string, v ir.IRValue) (ir.IRValue, error) {
	switch op {
	case OpCount:
		if ir.IsNull(v) {
			return ir.IRInt(0), nil
		}
		return castTo(ir.TypeInt, alias, v)
	case OpSum:
		if ir.IsNull(v) {
			return ir.IRInt(0), nil
		}
		return castNumber(alias, v)
	case OpAvg:
		if ir.IsNull(v) {
			return ir.IRNull{}, nil
		}
		n, err := castNumber(alias, v)
		if err != nil {
			return nil, err
		}
		if i, ok := n.(ir.IRInt); ok {
			return ir.NewIRDecimal(decimal.NewFromInt(int64(i))), nil
		}
		return n, nil
	default:
		return castTo(fieldType, alias, v)
	}
}

// castNumber keeps integral values as IRInt and everything else as IRDecimal.
func castNumber(alias string, v ir.IRValue) (ir.IRValue, error) {
	switch val := v.(type) {
	case ir.IRInt:
		return val, nil
	case ir.IRDecimal:
		if val.IsInteger() {
			return ir.IRInt(val.IntPart()), nil
		}
		return val, nil
	case ir.IRString:
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return nil, &TypeCastError{Column: alias, Target: ir.TypeDecimal, Value: v, Err: err}
		}
		return castNumber(alias, ir.NewIRDecimal(d))
	default:
		return nil, &TypeCastError{Column: alias, Target: ir.TypeDecimal, Value: v, Err: errNotNumeric}
	}
}

// castTo converts v to the declared type tag. An empty tag is the
// best-guess cast: the value as decoded from the row.
func castTo(typ, alias string, v ir.IRValue) (ir.IRValue, error) {
	if ir.IsNull(v) {
		return ir.IRNull{}, nil
	}

	fail := func(err error) (ir.IRValue, error) {
		return nil, &TypeCastError{Column: alias, Target: typ, Value: v, Err: err}
	}

	switch typ {
	case "":
		return v, nil
	case ir.TypeString:
		s, err := cast.ToStringE(scalar(v))
		if err != nil {
			return fail(err)
		}
		return ir.IRString(s), nil
	case ir.TypeInt:
		if d, ok := v.(ir.IRDecimal); ok {
			if !d.IsInteger() {
				return fail(errors.New("fractional value"))
			}
			return ir.IRInt(d.IntPart()), nil
		}
		n, err := cast.ToInt64E(scalar(v))
		if err != nil {
			return fail(err)
		}
		return ir.IRInt(n), nil
	case ir.TypeDecimal:
		n, err := castNumber(alias, v)
		if err != nil {
			return nil, err
		}
		if i, ok := n.(ir.IRInt); ok {
			return ir.NewIRDecimal(decimal.NewFromInt(int64(i))), nil
		}
		return n, nil
	case ir.TypeBool:
		b, err := cast.ToBoolE(scalar(v))
		if err != nil {
			return fail(err)
		}
		return ir.IRBool(b), nil
	case ir.TypeDate:
		t, err := toTime(v)
		if err != nil {
			return fail(err)
		}
		return ir.NewIRDate(t), nil
	case ir.TypeDateTime:
		t, err := toTime(v)
		if err != nil {
			return fail(err)
		}
		return ir.NewIRDateTime(t), nil
	default:
		return fail(errors.New("unknown type tag"))
	}
}

func toTime(v ir.IRValue) (time.Time, error) {
	switch val := v.(type) {
	case ir.IRDate:
		return val.Time, nil
	case ir.IRDateTime:
		return val.Time, nil
	case ir.IRString:
		// The remote API writes +0000 without a colon.
		if t, err := time.Parse("2006-01-02T15:04:05.000-0700", string(val)); err == nil {
			return t, nil
		}
	}
	return cast.ToTimeE(scalar(v))
}

// scalar unwraps v into a Go value cast understands. Decimals become their
// string form so no precision is lost on the way.
func scalar(v ir.IRValue) any {
	switch val := v.(type) {
	case ir.IRDecimal:
		return val.String()
	case ir.IRDate:
		return val.String()
	case ir.IRDateTime:
		return val.String()
	default:
		return ir.ToGo(v)
	}
}
