package aggregate

import (
	"fmt"
	"strings"
)

// Op is an aggregate operation.
type Op string

const (
	OpCount Op = "count"
	OpSum   Op = "sum"
	OpAvg   Op = "avg"
	OpMin   Op = "min"
	OpMax   Op = "max"
)

// AllColumns asks for the aggregate over whole rows, as COUNT(*) would.
// The dialect has no *, so it resolves to the identity column.
const AllColumns = "*"

// Request is an aggregate over a relation. Grouping, HAVING, limit and
// offset come from the relation itself.
type Request struct {
	Op       Op
	Column   string
	Distinct bool
}

// ParseOp parses an operation name. "average", "minimum" and "maximum" are
// accepted as aliases.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(s) {
	case "count":
		return OpCount, nil
	case "sum":
		return OpSum, nil
	case "avg", "average":
		return OpAvg, nil
	case "min", "minimum":
		return OpMin, nil
	case "max", "maximum":
		return OpMax, nil
	default:
		return "", fmt.Errorf("unknown aggregate operation %q", s)
	}
}

// all reports whether the request is over whole rows.
func (r Request) all() bool {
	return r.Column == "" || r.Column == AllColumns
}

// function is the dialect function name.
func (r Request) function() string {
	return strings.ToUpper(string(r.Op))
}
