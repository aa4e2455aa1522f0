package codec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/IvanBrykalov/fragcache/ui"
)

// Encode serializes an element tree into a payload. Client elements become
// import rows, numbered in order of first appearance.
func Encode(root ui.Node) (string, error) {
	e := &encoder{imports: make(map[string]uint64)}
	model, err := e.model(root, 0)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, row := range e.rows {
		b.WriteString(row)
	}
	line, err := json.Marshal(model)
	if err != nil {
		return "", encodeErr("marshal root model", "cause", err.Error())
	}
	b.WriteString("0:")
	b.Write(line)
	b.WriteByte('\n')
	return b.String(), nil
}

// EncodeError builds a payload whose root is a server-side render error.
func EncodeError(cause error) string {
	msg, _ := json.Marshal(struct {
		Message string `json:"message"`
	}{Message: cause.Error()})
	return "0:E" + string(msg) + "\n"
}

type encoder struct {
	next    uint64
	imports map[string]uint64
	rows    []string
}

func (e *encoder) importRow(ref *ui.Reference) (uint64, error) {
	k := ref.ID + "#" + ref.Name
	if id, ok := e.imports[k]; ok {
		return id, nil
	}
	body, err := json.Marshal(ref)
	if err != nil {
		return 0, encodeErr("marshal client reference", "component", ref.Name)
	}
	e.next++
	e.imports[k] = e.next
	e.rows = append(e.rows, strconv.FormatUint(e.next, 16)+":I"+string(body)+"\n")
	return e.next, nil
}

func (e *encoder) model(n ui.Node, depth int) (any, error) {
	if depth > maxDepth {
		return nil, encodeErr("element tree too deep")
	}
	switch v := n.(type) {
	case nil, bool, json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return v, nil
	case string:
		if strings.HasPrefix(v, "$") {
			return "$" + v, nil
		}
		return v, nil
	case []ui.Node:
		out := make([]any, len(v))
		for i, c := range v {
			m, err := e.model(c, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil
	case map[string]any:
		return e.object(v, depth)
	case ui.Props:
		return e.object(v, depth)
	case *ui.Element:
		return e.element(v, depth)
	default:
		return nil, encodeErr("unsupported node", "type", fmt.Sprintf("%T", n))
	}
}

func (e *encoder) object(m map[string]any, depth int) (map[string]any, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, k := range keys {
		v, err := e.model(m[k], depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (e *encoder) element(el *ui.Element, depth int) (any, error) {
	if el == nil {
		return nil, nil
	}
	var typ string
	switch {
	case el.Ref != nil:
		id, err := e.importRow(el.Ref)
		if err != nil {
			return nil, err
		}
		typ = "$L" + strconv.FormatUint(id, 16)
	case el.Component != nil:
		return nil, encodeErr("client component without a reference", "component", el.Type)
	case el.Type == "" || strings.HasPrefix(el.Type, "$"):
		return nil, encodeErr("invalid element type", "type", el.Type)
	default:
		typ = el.Type
	}

	var key any
	if el.Key != "" {
		key = el.Key
	}
	props, err := e.object(el.Props, depth)
	if err != nil {
		return nil, err
	}
	return []any{"$", typ, key, props}, nil
}
