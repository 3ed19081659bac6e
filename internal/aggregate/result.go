package aggregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/relation"
)

// Result is the outcome of an aggregate request.
//
// Ungrouped requests set Scalar. Grouped requests set Groups, one per
// distinct key tuple, in the order the keys first appeared.
type Result struct {
	Scalar ir.IRValue
	Groups []Group

	index map[string]int
}

// Group is one row of a grouped aggregate.
type Group struct {
	// Key holds the cast group-key values. A single key is a one-element slice.
	Key []ir.IRValue

	// Entity is the related record when grouping by a belongs-to
	// association, or nil when no record has the key's identity.
	Entity *ir.Record

	// Value is the cast aggregate value.
	Value ir.IRValue
}

// Grouped reports whether the result came from a GROUP BY query.
func (r Result) Grouped() bool {
	return r.Groups != nil
}

// Lookup returns the group with the given key tuple.
func (r Result) Lookup(key ...ir.IRValue) (Group, bool) {
	k, err := ir.CanonicalKey(key...)
	if err != nil {
		return Group{}, false
	}
	i, ok := r.index[k]
	if !ok {
		return Group{}, false
	}
	return r.Groups[i], true
}

// decodeSimple reads expr0 from the single result row.
func decodeSimple(rel relation.Relation, req Request, plan Plan, rows []ir.Record) (Result, error) {
	var raw ir.IRValue = ir.IRNull{}
	if len(rows) > 0 {
		raw = fieldValue(rows[0], plan.ValueAlias)
	}
	v, err := castValue(req.Op, plan.ValueAlias, declaredType(rel.Entity(), req.Column), raw)
	if err != nil {
		return Result{}, err
	}
	return Result{Scalar: v}, nil
}

// decodeGrouped builds the key to value mapping, hydrating belongs-to keys
// with one batched lookup.
func (n *Normalizer) decodeGrouped(ctx context.Context, rel relation.Relation, req Request, plan Plan, rows []ir.Record) (Result, error) {
	var related map[string]*ir.Record
	if plan.Association != nil {
		var err error
		related, err = n.hydrate(ctx, *plan.Association, plan.KeyAliases[0], rows)
		if err != nil {
			return Result{}, err
		}
	}

	result := Result{Groups: []Group{}, index: make(map[string]int)}
	valueType := declaredType(rel.Entity(), req.Column)

	for _, row := range rows {
		key := make([]ir.IRValue, len(plan.KeyAliases))
		for i, alias := range plan.KeyAliases {
			v, err := castTo(declaredType(rel.Entity(), plan.KeyFields[i]), alias, fieldValue(row, alias))
			if err != nil {
				return Result{}, err
			}
			key[i] = v
		}

		value, err := castValue(req.Op, plan.ValueAlias, valueType, fieldValue(row, plan.ValueAlias))
		if err != nil {
			return Result{}, err
		}

		group := Group{Key: key, Value: value}
		if related != nil {
			if id, ok := key[0].(ir.IRString); ok {
				group.Entity = related[string(id)]
			}
		}

		k, err := ir.CanonicalKey(key...)
		if err != nil {
			return Result{}, fmt.Errorf("group key: %w", err)
		}
		if i, seen := result.index[k]; seen {
			result.Groups[i] = group
			continue
		}
		result.index[k] = len(result.Groups)
		result.Groups = append(result.Groups, group)
	}

	return result, nil
}

// hydrate loads every related record named by the foreign-key column with
// one query. Keys without a matching record are absent from the map.
func (n *Normalizer) hydrate(ctx context.Context, assoc ir.Association, alias string, rows []ir.Record) (map[string]*ir.Record, error) {
	related := make(map[string]*ir.Record)
	if n.finder == nil {
		return related, nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, row := range rows {
		id, ok := fieldValue(row, alias).(ir.IRString)
		if !ok || seen[string(id)] {
			continue
		}
		seen[string(id)] = true
		ids = append(ids, string(id))
	}
	if len(ids) == 0 {
		return related, nil
	}

	records, err := n.finder.FindByIDs(ctx, assoc.Entity, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", assoc.Name, err)
	}
	for i := range records {
		related[records[i].ID()] = &records[i]
	}
	return related, nil
}

// fieldValue reads a result column. Aliases come back in the case the
// remote system chooses, so a case-insensitive match is the fallback.
func fieldValue(row ir.Record, name string) ir.IRValue {
	if v, ok := row.Fields[name]; ok {
		return v
	}
	for k, v := range row.Fields {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ir.IRNull{}
}

// declaredType returns the declared type tag of column, or "" when the
// column is not a declared field.
func declaredType(e *ir.Entity, column string) string {
	if e == nil {
		return ""
	}
	if f, ok := e.Field(column); ok {
		return f.Type
	}
	return ""
}
