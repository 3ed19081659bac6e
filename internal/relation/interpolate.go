package relation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/queryir"
	"github.com/roach88/soqlkit/internal/soql"
)

// ErrPlaceholderCount is returned when a fragment's ? count differs from
// its argument count.
var ErrPlaceholderCount = errors.New("placeholder count mismatch")

// ErrEmptyList is returned for a condition whose value is an empty list.
// The dialect has no empty IN list.
var ErrEmptyList = errors.New("empty list in condition")

// rawCondition interpolates args into fragment and wraps it in parentheses.
func rawCondition(fragment string, args []any) (queryir.Node, error) {
	text, err := Interpolate(fragment, args...)
	if err != nil {
		return nil, err
	}
	return &queryir.Grouping{Expr: queryir.NewRaw(text)}, nil
}

// Interpolate replaces each ? in fragment with the quoted literal of the
// matching argument. Slices expand to comma separated lists, so
// "Id IN (?)" with []string{"a", "b"} becomes "Id IN ('a', 'b')".
//
// The dialect has no bind parameters; this is the only way values reach
// raw fragments.
func Interpolate(fragment string, args ...any) (string, error) {
	if n := strings.Count(fragment, "?"); n != len(args) {
		return "", fmt.Errorf("%w: %d placeholders, %d args", ErrPlaceholderCount, n, len(args))
	}

	var b strings.Builder
	next := 0
	for _, r := range fragment {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		s, err := quoteBound(args[next])
		if err != nil {
			return "", fmt.Errorf("arg %d: %w", next, err)
		}
		b.WriteString(s)
		next++
	}
	return b.String(), nil
}

func quoteBound(arg any) (string, error) {
	v, err := ir.FromGo(arg)
	if err != nil {
		return "", err
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return soql.LiteralQuoter{}.Quote(v)
	}
	if len(arr) == 0 {
		return "NULL", nil
	}
	parts := make([]string, len(arr))
	for i, elem := range arr {
		s, err := soql.LiteralQuoter{}.Quote(elem)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ", "), nil
}
