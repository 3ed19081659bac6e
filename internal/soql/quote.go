package soql

import (
	"fmt"
	"strings"

	"github.com/roach88/soqlkit/internal/ir"
)

// Quoter renders values as dialect literals.
type Quoter interface {
	Quote(v ir.IRValue) (string, error)
}

// LiteralQuoter is the dialect's quoting rules:
//
//	date      2010-09-20                 (unquoted)
//	datetime  2010-09-20T22:16:30+00:00  (unquoted, numeric zone)
//	null      NULL
//	bool      true / false
//	string    'It''s'                    (quotes doubled)
//	number    42, 10.5
//	array     ('a', 'b')                 (for IN)
type LiteralQuoter struct{}

var stringEscaper = strings.NewReplacer(`'`, `''`)

// Quote implements Quoter.
func (LiteralQuoter) Quote(v ir.IRValue) (string, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return "NULL", nil
	case ir.IRBool:
		if val {
			return "true", nil
		}
		return "false", nil
	case ir.IRDate:
		return val.String(), nil
	case ir.IRDateTime:
		return val.String(), nil
	case ir.IRString:
		return QuoteString(string(val)), nil
	case ir.IRInt:
		return fmt.Sprintf("%d", int64(val)), nil
	case ir.IRDecimal:
		return val.Decimal.String(), nil
	case ir.IRArray:
		parts := make([]string, len(val))
		for i, elem := range val {
			s, err := LiteralQuoter{}.Quote(elem)
			if err != nil {
				return "", fmt.Errorf("array[%d]: %w", i, err)
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	default:
		return "", fmt.Errorf("soql: %w: %T", ErrUnsupportedLiteral, v)
	}
}

// QuoteString wraps s in single quotes, escaping it for the dialect.
func QuoteString(s string) string {
	return "'" + stringEscaper.Replace(s) + "'"
}
