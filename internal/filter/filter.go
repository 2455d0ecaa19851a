// Package filter parses the JSON "filter" and "where" query parameters into
// gendry where maps. Field names are checked against a Schema, so only
// whitelisted columns ever reach SQL.
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/didi/gendry/builder"

	appErr "github.com/xxxsen/tablereserve/internal/pkg/errors"
)

type Kind int

const (
	KindInt Kind = iota
	KindString
	KindBool
	KindTime
)

type Field struct {
	Column string
	Kind   Kind
}

// Schema maps JSON property names to columns.
type Schema map[string]Field

type Filter struct {
	Where map[string]interface{}
	Order string
	Limit int
	Skip  int
}

// Conditions returns the gendry where map including ordering and paging.
func (f *Filter) Conditions(defaultOrder string) map[string]interface{} {
	out := make(map[string]interface{}, len(f.Where)+2)
	for k, v := range f.Where {
		out[k] = v
	}
	order := f.Order
	if order == "" {
		order = defaultOrder
	}
	if order != "" {
		out["_orderby"] = order
	}
	if f.Limit > 0 || f.Skip > 0 {
		limit := f.Limit
		if limit == 0 {
			limit = math.MaxInt32
		}
		out["_limit"] = []uint{uint(f.Skip), uint(limit)}
	}
	return out
}

var operators = map[string]string{
	"eq":      "",
	"neq":     " !=",
	"gt":      " >",
	"gte":     " >=",
	"lt":      " <",
	"lte":     " <=",
	"inq":     " in",
	"nin":     " not in",
	"like":    " like",
	"nlike":   " not like",
	"between": " between",
	"ilike":   "",
}

func decode(raw string, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return appErr.Invalid("malformed filter json")
	}
	return nil
}

// ParseFilter parses {"where":..,"order":..,"limit":..,"skip":..}. An empty
// string yields an empty filter.
func ParseFilter(raw string, schema Schema) (*Filter, error) {
	f := &Filter{Where: map[string]interface{}{}}
	if strings.TrimSpace(raw) == "" {
		return f, nil
	}
	var in map[string]interface{}
	if err := decode(raw, &in); err != nil {
		return nil, err
	}
	var err error
	for key, val := range in {
		switch key {
		case "where":
			m, ok := val.(map[string]interface{})
			if !ok {
				return nil, appErr.Invalid("where must be an object")
			}
			if f.Where, err = buildWhere(m, schema); err != nil {
				return nil, err
			}
		case "order":
			if f.Order, err = buildOrder(val, schema); err != nil {
				return nil, err
			}
		case "limit":
			if f.Limit, err = nonNegative(key, val); err != nil {
				return nil, err
			}
		case "skip", "offset":
			if f.Skip, err = nonNegative(key, val); err != nil {
				return nil, err
			}
		default:
			return nil, appErr.Invalid(fmt.Sprintf("unsupported filter key %q", key))
		}
	}
	return f, nil
}

// ParseWhere parses a bare where object as used by count and bulk update.
func ParseWhere(raw string, schema Schema) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, nil
	}
	var in map[string]interface{}
	if err := decode(raw, &in); err != nil {
		return nil, err
	}
	return buildWhere(in, schema)
}

// buildWhere keys never collide: field conditions use whitelisted column
// names, "or" becomes _or and every "and" item becomes its own _or_and_<i>
// group, so nested groups keep their own parentheses.
func buildWhere(in map[string]interface{}, schema Schema) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(in))
	for key, val := range in {
		if key == "or" || key == "and" {
			subs, err := buildGroup(key, val, schema)
			if err != nil {
				return nil, err
			}
			if key == "or" {
				out["_or"] = subs
				continue
			}
			for i, sub := range subs {
				out[fmt.Sprintf("_or_and_%d", i)] = []map[string]interface{}{sub}
			}
			continue
		}
		field, ok := schema[key]
		if !ok {
			return nil, appErr.Invalid(fmt.Sprintf("unknown field %q", key))
		}
		ops, isOps := val.(map[string]interface{})
		if !isOps {
			ops = map[string]interface{}{"eq": val}
		}
		for op, operand := range ops {
			if err := addCondition(out, key, field, op, operand); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func buildGroup(key string, val interface{}, schema Schema) ([]map[string]interface{}, error) {
	items, ok := val.([]interface{})
	if !ok || len(items) == 0 {
		return nil, appErr.Invalid(key + " must be a non-empty array")
	}
	subs := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok || len(m) == 0 {
			return nil, appErr.Invalid(key + " items must be non-empty objects")
		}
		sub, err := buildWhere(m, schema)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func addCondition(out map[string]interface{}, name string, field Field, op string, operand interface{}) error {
	suffix, ok := operators[op]
	if !ok {
		return appErr.Invalid(fmt.Sprintf("unsupported operator %q on %q", op, name))
	}
	switch op {
	case "inq", "nin", "between":
		items, ok := operand.([]interface{})
		if !ok || len(items) == 0 {
			return appErr.Invalid(fmt.Sprintf("%s on %q needs a non-empty array", op, name))
		}
		if op == "between" && len(items) != 2 {
			return appErr.Invalid(fmt.Sprintf("between on %q needs two values", name))
		}
		values := make([]interface{}, 0, len(items))
		for _, item := range items {
			v, err := convert(name, field.Kind, item)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		out[field.Column+suffix] = values
		return nil
	case "like", "nlike", "ilike":
		if field.Kind != KindString {
			return appErr.Invalid(fmt.Sprintf("%s needs a string field, got %q", op, name))
		}
	}
	v, err := convert(name, field.Kind, operand)
	if err != nil {
		return err
	}
	if op == "ilike" {
		out["_custom_ilike_"+field.Column] = builder.Custom("LOWER("+field.Column+") LIKE LOWER(?)", v)
		return nil
	}
	out[field.Column+suffix] = v
	return nil
}

func convert(name string, kind Kind, v interface{}) (interface{}, error) {
	switch kind {
	case KindInt:
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
		}
		return nil, appErr.Invalid(fmt.Sprintf("%q must be an integer", name))
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, appErr.Invalid(fmt.Sprintf("%q must be a string", name))
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, appErr.Invalid(fmt.Sprintf("%q must be a boolean", name))
	case KindTime:
		switch t := v.(type) {
		case json.Number:
			if i, err := t.Int64(); err == nil {
				return i, nil
			}
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return ts.UnixMilli(), nil
			}
		}
		return nil, appErr.Invalid(fmt.Sprintf("%q must be an RFC3339 time or unix millis", name))
	}
	return nil, appErr.Invalid(fmt.Sprintf("unsupported field %q", name))
}

func buildOrder(val interface{}, schema Schema) (string, error) {
	var items []string
	switch v := val.(type) {
	case string:
		items = []string{v}
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return "", appErr.Invalid("order items must be strings")
			}
			items = append(items, s)
		}
	default:
		return "", appErr.Invalid("order must be a string or array")
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		tokens := strings.Fields(item)
		if len(tokens) == 0 || len(tokens) > 2 {
			return "", appErr.Invalid(fmt.Sprintf("bad order %q", item))
		}
		field, ok := schema[tokens[0]]
		if !ok {
			return "", appErr.Invalid(fmt.Sprintf("unknown order field %q", tokens[0]))
		}
		dir := "asc"
		if len(tokens) == 2 {
			switch strings.ToLower(tokens[1]) {
			case "asc":
			case "desc":
				dir = "desc"
			default:
				return "", appErr.Invalid(fmt.Sprintf("bad order direction %q", tokens[1]))
			}
		}
		parts = append(parts, field.Column+" "+dir)
	}
	return strings.Join(parts, ","), nil
}

func nonNegative(key string, v interface{}) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, appErr.Invalid(key + " must be an integer")
	}
	i, err := n.Int64()
	if err != nil || i < 0 || i > math.MaxInt32 {
		return 0, appErr.Invalid(key + " must be a non-negative integer")
	}
	return int(i), nil
}
