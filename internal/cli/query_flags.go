package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/soqlkit/internal/harness"
)

// QueryFlags describe a relation on the command line. They build the same
// RelationSpec a scenario step declares in YAML.
type QueryFlags struct {
	From     string
	Select   []string
	Where    []string // column=value
	Not      []string // column=value
	WhereRaw []string
	Group    []string
	Having   []string
	Order    []string // "Name" or "Name DESC"
	Limit    int
	Offset   int
}

func (q *QueryFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&q.From, "from", "", "entity to query (required)")
	f.StringSliceVar(&q.Select, "select", nil, "columns to project (default: every declared field)")
	f.StringArrayVar(&q.Where, "where", nil, "equality condition column=value (repeatable)")
	f.StringArrayVar(&q.Not, "not", nil, "negated condition column=value (repeatable)")
	f.StringArrayVar(&q.WhereRaw, "where-raw", nil, "raw SOQL condition (repeatable)")
	f.StringSliceVar(&q.Group, "group", nil, "columns to group by")
	f.StringArrayVar(&q.Having, "having", nil, "raw SOQL HAVING condition (repeatable)")
	f.StringArrayVar(&q.Order, "order", nil, `ordering such as "Name" or "Name DESC" (repeatable)`)
	f.IntVar(&q.Limit, "limit", 0, "maximum number of rows")
	f.IntVar(&q.Offset, "offset", 0, "rows to skip")
	_ = cmd.MarkFlagRequired("from")
}

// Spec converts the flags into a RelationSpec. Condition values are read
// as YAML scalars, so 42 is an integer, true a boolean, ~ null and [1, 2]
// a list that compiles to IN.
func (q *QueryFlags) Spec(cmd *cobra.Command) (*harness.RelationSpec, error) {
	spec := &harness.RelationSpec{
		From:   q.From,
		Select: q.Select,
		Group:  q.Group,
		Order:  q.Order,
	}

	var err error
	if spec.Where, err = parseConditions(q.Where); err != nil {
		return nil, err
	}
	if spec.Not, err = parseConditions(q.Not); err != nil {
		return nil, err
	}
	for _, raw := range q.WhereRaw {
		spec.WhereRaw = append(spec.WhereRaw, harness.Fragment{SQL: raw})
	}
	for _, raw := range q.Having {
		spec.Having = append(spec.Having, harness.Fragment{SQL: raw})
	}

	if cmd.Flags().Changed("limit") {
		limit := q.Limit
		spec.Limit = &limit
	}
	if cmd.Flags().Changed("offset") {
		offset := q.Offset
		spec.Offset = &offset
	}
	return spec, nil
}

func parseConditions(entries []string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	conds := make(map[string]any, len(entries))
	for _, entry := range entries {
		column, raw, ok := strings.Cut(entry, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return nil, fmt.Errorf("invalid condition %q: want column=value", entry)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid condition value %q: %w", raw, err)
		}
		conds[column] = value
	}
	return conds, nil
}
