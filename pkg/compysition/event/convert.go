package event

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// FormEntry is one {key: tuple-of-values} element of a Form payload,
// spec.md §3.2/§3.3.
type FormEntry struct {
	Key    string
	Values []string
}

// Form is the ordered list of {key: tuple-of-values} objects that make up
// an application/x-www-form-urlencoded payload.
type Form []FormEntry

// Clone deep-copies f.
func (f Form) Clone() Form {
	out := make(Form, len(f))
	for i, e := range f {
		vals := make([]string, len(e.Values))
		copy(vals, e.Values)
		out[i] = FormEntry{Key: e.Key, Values: vals}
	}
	return out
}

// ParseForm parses s as application/x-www-form-urlencoded, grouping
// consecutive same-key pairs into a single entry's value tuple (matching
// the grouping behavior of the original compysition implementation). An
// empty string yields an empty Form, the documented empty form (spec.md §8).
func ParseForm(s string) (Form, error) {
	if s == "" {
		return Form{}, nil
	}
	var form Form
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		key, err := url.QueryUnescape(kv[0])
		if err != nil {
			return nil, fmt.Errorf("form: invalid key %q: %w", kv[0], err)
		}
		value := ""
		if len(kv) == 2 {
			value, err = url.QueryUnescape(kv[1])
			if err != nil {
				return nil, fmt.Errorf("form: invalid value for %q: %w", key, err)
			}
		}
		if n := len(form); n > 0 && form[n-1].Key == key {
			form[n-1].Values = append(form[n-1].Values, value)
		} else {
			form = append(form, FormEntry{Key: key, Values: []string{value}})
		}
	}
	return form, nil
}

// String serializes f to its canonical application/x-www-form-urlencoded
// textual form.
func (f Form) String() string {
	var parts []string
	for _, e := range f {
		for _, v := range e.Values {
			parts = append(parts, url.QueryEscape(e.Key)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

// ParseMapping parses s as JSON. An empty string yields an empty map, the
// documented empty form for Mapping (spec.md §8).
func ParseMapping(s string) (any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("mapping: parse: %w", err)
	}
	return v, nil
}

// MappingString serializes m to its canonical JSON textual form.
func MappingString(m any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "null"
	}
	return string(b)
}

// CloneMapping deep-copies a Mapping payload (map[string]any / []any /
// scalar tree).
func CloneMapping(m any) any {
	switch v := m.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = CloneMapping(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = CloneMapping(val)
		}
		return out
	default:
		return v
	}
}

// jsonifiedEnvelope is the synthetic root used to wrap a Mapping with
// multiple top-level keys, or a top-level sequence, when converting to
// Tree (spec.md §3.2). It is stripped on the reverse path.
const jsonifiedEnvelope = "jsonified_envelope"

// xWWWFormEnvelope is the synthetic root used to wrap a multi-entry Form
// when converting to Tree (spec.md §3.2).
const xWWWFormEnvelope = "x_www_form_envelope"

// TreeToMapping converts t to its Mapping representation, stripping the
// jsonified_envelope synthetic root exactly once if present, and honoring
// force_list attributes to force one-element sequences.
func TreeToMapping(t *Tree) any {
	if t == nil {
		return map[string]any{}
	}
	if t.Name == jsonifiedEnvelope {
		return treeChildrenToMapping(t)
	}
	return map[string]any{t.Name: treeValue(t)}
}

func treeValue(t *Tree) any {
	if len(t.Children) == 0 {
		return t.Text
	}
	return treeChildrenToMapping(t)
}

// treeChildrenToMapping groups t's children by name, preserving the
// force_list override, and returns the resulting map[string]any.
func treeChildrenToMapping(t *Tree) map[string]any {
	order := make([]string, 0, len(t.Children))
	grouped := make(map[string][]*Tree)
	forced := make(map[string]bool)
	for _, c := range t.Children {
		if _, ok := grouped[c.Name]; !ok {
			order = append(order, c.Name)
		}
		grouped[c.Name] = append(grouped[c.Name], c)
		if c.HasForceList() {
			forced[c.Name] = true
		}
	}
	out := make(map[string]any, len(order))
	for _, name := range order {
		children := grouped[name]
		if len(children) == 1 && !forced[name] {
			out[name] = stripForceList(treeValue(children[0]))
		} else {
			list := make([]any, len(children))
			for i, c := range children {
				list[i] = stripForceList(treeValue(c))
			}
			out[name] = list
		}
	}
	return out
}

// stripForceList returns v unchanged: treeValue never copies element
// attributes into the Mapping payload, so the force_list marker cannot
// reach the Mapping output and there is nothing to remove.
func stripForceList(v any) any {
	return v
}

// MappingToTree converts m to its Tree representation. A map with a single
// top-level key becomes a tree rooted at that key; anything else (a
// multi-key map, or a top-level list/scalar) is wrapped under the
// synthetic root jsonified_envelope.
func MappingToTree(m any) *Tree {
	if mp, ok := m.(map[string]any); ok && len(mp) == 1 {
		for k, v := range mp {
			return mappingValueToTree(k, v)
		}
	}
	root := &Tree{Name: jsonifiedEnvelope}
	populateTreeChildren(root, m)
	return root
}

func mappingValueToTree(name string, v any) *Tree {
	t := &Tree{Name: name}
	populateTreeChildren(t, v)
	return t
}

// populateTreeChildren fills t's Text/Children from v, recursing through
// nested maps and lists.
func populateTreeChildren(t *Tree, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			addTreeChild(t, k, val[k])
		}
	case []any:
		// A bare list value (no owning key) has no natural element tag in
		// this model; each item becomes an "item" child.
		forceSingle := len(val) == 1
		for _, item := range val {
			c := mappingValueToTree("item", item)
			if forceSingle {
				if c.Attrs == nil {
					c.Attrs = map[string]string{}
				}
				c.Attrs[ForceListAttr] = "true"
			}
			t.Children = append(t.Children, c)
		}
	case nil:
		// leave Text empty
	default:
		t.Text = fmt.Sprintf("%v", val)
	}
}

func addTreeChild(parent *Tree, key string, v any) {
	if list, ok := v.([]any); ok {
		forceSingle := len(list) == 1
		for _, item := range list {
			c := mappingValueToTree(key, item)
			if forceSingle {
				if c.Attrs == nil {
					c.Attrs = map[string]string{}
				}
				c.Attrs[ForceListAttr] = "true"
			}
			parent.Children = append(parent.Children, c)
		}
		return
	}
	parent.Children = append(parent.Children, mappingValueToTree(key, v))
}

// FormToMapping converts a Form to Mapping: multiple same-keyed entries
// collapse to a mapping-keyed list; a single value is emitted as a scalar
// unless another entry with the same key exists. Numeric strings are
// never coerced (spec.md §9 Open Questions).
func FormToMapping(f Form) any {
	order := make([]string, 0, len(f))
	grouped := make(map[string][]string)
	for _, e := range f {
		if _, ok := grouped[e.Key]; !ok {
			order = append(order, e.Key)
		}
		grouped[e.Key] = append(grouped[e.Key], e.Values...)
	}
	out := make(map[string]any, len(order))
	for _, k := range order {
		vals := grouped[k]
		if len(vals) == 1 {
			out[k] = vals[0]
		} else {
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			out[k] = list
		}
	}
	return out
}

// MappingToForm converts a Mapping to Form. Keys are emitted in sorted
// order for determinism (the generic map[string]any payload carries no
// ordering of its own); values are stringified without numeric parsing.
func MappingToForm(m any) Form {
	mp, ok := m.(map[string]any)
	if !ok {
		return Form{}
	}
	keys := make([]string, 0, len(mp))
	for k := range mp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	form := make(Form, 0, len(keys))
	for _, k := range keys {
		switch v := mp[k].(type) {
		case []any:
			values := make([]string, len(v))
			for i, item := range v {
				values[i] = fmt.Sprintf("%v", item)
			}
			form = append(form, FormEntry{Key: k, Values: values})
		default:
			form = append(form, FormEntry{Key: k, Values: []string{fmt.Sprintf("%v", v)}})
		}
	}
	return form
}

// FormToTree converts a Form to Tree. A single-entry form with a single
// value becomes a tree whose root tag is that key and text is that value,
// unless the value parses as well-formed XML, in which case it is used
// directly. Multi-entry forms wrap under the synthetic root
// x_www_form_envelope.
func FormToTree(f Form) *Tree {
	if len(f) == 1 && len(f[0].Values) == 1 {
		key, value := f[0].Key, f[0].Values[0]
		if IsWellFormedTree(value) {
			if t, err := ParseTree(value); err == nil {
				return t
			}
		}
		return &Tree{Name: key, Text: value}
	}
	root := &Tree{Name: xWWWFormEnvelope}
	for _, e := range f {
		for _, v := range e.Values {
			root.Children = append(root.Children, &Tree{Name: e.Key, Text: v})
		}
	}
	return root
}

// TreeToForm converts a Tree to Form, the inverse of FormToTree.
func TreeToForm(t *Tree) Form {
	if t == nil {
		return Form{}
	}
	if t.Name == xWWWFormEnvelope {
		var form Form
		grouped := make(map[string]int) // key -> index in form
		for _, c := range t.Children {
			if idx, ok := grouped[c.Name]; ok {
				form[idx].Values = append(form[idx].Values, c.Text)
			} else {
				grouped[c.Name] = len(form)
				form = append(form, FormEntry{Key: c.Name, Values: []string{c.Text}})
			}
		}
		return form
	}
	value := t.Text
	if len(t.Children) > 0 {
		value = t.String()
	}
	return Form{{Key: t.Name, Values: []string{value}}}
}
