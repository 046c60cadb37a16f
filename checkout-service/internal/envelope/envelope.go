// Package envelope reads loosely shaped backend JSON bodies through ordered
// extraction rules. The first rule that matches wins.
package envelope

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Body is a decoded JSON object.
type Body map[string]any

// Rule names a dotted location in a Body.
type Rule struct {
	Name string
	Path []string
}

// Root addresses the body itself.
var Root = Rule{Name: "root"}

func At(path ...string) Rule {
	name := ""
	for i, p := range path {
		if i > 0 {
			name += "."
		}
		name += p
	}
	return Rule{Name: name, Path: path}
}

func Decode(raw []byte) (Body, error) {
	var b Body
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return b, nil
}

// Lookup walks the path through nested objects.
func (b Body) Lookup(path ...string) (any, bool) {
	var cur any = map[string]any(b)
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns a non-empty scalar at path. Numbers and booleans are
// formatted; objects and arrays never match.
func (b Body) String(path ...string) (string, bool) {
	v, ok := b.Lookup(path...)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func (b Body) Object(path ...string) (Body, bool) {
	v, ok := b.Lookup(path...)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return Body(obj), ok
}

// FirstString applies rules in order and returns the first string match along
// with the rule that produced it.
func (b Body) FirstString(rules []Rule) (string, Rule, bool) {
	for _, r := range rules {
		if s, ok := b.String(r.Path...); ok {
			return s, r, true
		}
	}
	return "", Rule{}, false
}

// FirstObject returns the first object in rule order that carries at least one
// of the marker keys. An empty path addresses the body itself.
func (b Body) FirstObject(rules []Rule, markers ...string) (Body, Rule, bool) {
	for _, r := range rules {
		obj := b
		if len(r.Path) > 0 {
			var ok bool
			if obj, ok = b.Object(r.Path...); !ok {
				continue
			}
		}
		for _, m := range markers {
			if _, ok := obj.Lookup(m); ok {
				return obj, r, true
			}
		}
	}
	return nil, Rule{}, false
}

// Into re-encodes the body into a typed value.
func (b Body) Into(v any) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	return nil
}
