package codec

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/IvanBrykalov/fragcache/ui"
)

// maxDepth bounds model nesting and row indirection.
const maxDepth = 512

// ReferenceResolver turns a client import into a component implementation.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, ref ui.Reference) (ui.ComponentFunc, error)
}

// ResolverFunc adapts a function to ReferenceResolver.
type ResolverFunc func(ctx context.Context, ref ui.Reference) (ui.ComponentFunc, error)

func (f ResolverFunc) ResolveReference(ctx context.Context, ref ui.Reference) (ui.ComponentFunc, error) {
	return f(ctx, ref)
}

// Decode reads a whole payload from r and builds its element tree. Client
// imports are resolved through refs, once per import row. refs may be nil
// for payloads without client components.
func Decode(ctx context.Context, r io.Reader, refs ReferenceResolver) (ui.Node, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}
	d := &decoder{
		ctx:      ctx,
		rows:     rows,
		refs:     refs,
		resolved: make(map[uint64]*ui.Element),
		visiting: make(map[uint64]bool),
	}
	return d.row(0, 0)
}

// DecodeString is Decode over an in-memory payload.
func DecodeString(ctx context.Context, payload string, refs ReferenceResolver) (ui.Node, error) {
	return Decode(ctx, strings.NewReader(payload), refs)
}

type row struct {
	tag  byte // 0, 'I' or 'E'
	body []byte
}

func readRows(r io.Reader) (map[uint64]row, error) {
	rows := make(map[uint64]row)
	br := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, decodeErr(err, "read payload", "line", lineNo)
		}
		if trimmed := bytes.TrimRight(line, "\r\n"); len(trimmed) > 0 {
			id, rw, perr := parseRow(trimmed)
			if perr != nil {
				return nil, decodeErr(perr, "malformed row", "line", lineNo)
			}
			if _, dup := rows[id]; dup {
				return nil, decodeErr(nil, "duplicate row id", "line", lineNo, "row", id)
			}
			rows[id] = rw
		}
		if err != nil {
			break
		}
	}
	if len(rows) == 0 {
		return nil, decodeErr(nil, "empty payload")
	}
	return rows, nil
}

func parseRow(line []byte) (uint64, row, error) {
	i := bytes.IndexByte(line, ':')
	if i <= 0 {
		return 0, row{}, errors.New("missing row id separator")
	}
	id, err := strconv.ParseUint(string(line[:i]), 16, 64)
	if err != nil {
		return 0, row{}, errors.New("row id is not hexadecimal")
	}
	body := line[i+1:]
	if len(body) == 0 {
		return 0, row{}, errors.New("empty row body")
	}
	var tag byte
	if body[0] == 'I' || body[0] == 'E' {
		tag, body = body[0], body[1:]
	}
	return id, row{tag: tag, body: append([]byte(nil), body...)}, nil
}

type decoder struct {
	ctx      context.Context
	rows     map[uint64]row
	refs     ReferenceResolver
	resolved map[uint64]*ui.Element // import id -> template element
	visiting map[uint64]bool
}

func (d *decoder) row(id uint64, depth int) (ui.Node, error) {
	if err := d.ctx.Err(); err != nil {
		return nil, err
	}
	rw, ok := d.rows[id]
	if !ok {
		if id == 0 {
			return nil, decodeErr(nil, "missing root row")
		}
		return nil, decodeErr(nil, "reference to missing row", "row", id)
	}
	switch rw.tag {
	case 'E':
		var e struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(rw.body, &e); err != nil {
			return nil, decodeErr(err, "invalid error row", "row", id)
		}
		return nil, decodeErr(ErrServerRender, e.Message, "row", id)
	case 'I':
		return nil, decodeErr(nil, "import row used as a model", "row", id)
	}

	if d.visiting[id] {
		return nil, decodeErr(nil, "cyclic row reference", "row", id)
	}
	d.visiting[id] = true
	defer delete(d.visiting, id)

	dec := json.NewDecoder(bytes.NewReader(rw.body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, decodeErr(err, "invalid model JSON", "row", id)
	}
	if dec.More() {
		return nil, decodeErr(nil, "trailing data after model", "row", id)
	}
	return d.value(v, depth)
}

func (d *decoder) value(v any, depth int) (ui.Node, error) {
	if depth > maxDepth {
		return nil, decodeErr(nil, "model nested too deeply")
	}
	switch t := v.(type) {
	case string:
		return d.str(t, depth)
	case []any:
		if len(t) == 4 && t[0] == "$" {
			return d.element(t, depth)
		}
		out := make([]ui.Node, len(t))
		for i, c := range t {
			n, err := d.value(c, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		return d.object(t, depth)
	default:
		return t, nil
	}
}

func (d *decoder) str(s string, depth int) (ui.Node, error) {
	if !strings.HasPrefix(s, "$") {
		return s, nil
	}
	switch {
	case strings.HasPrefix(s, "$$"):
		return s[1:], nil
	case strings.HasPrefix(s, "$L"):
		return nil, decodeErr(nil, "client reference outside element type", "value", s)
	}
	id, err := strconv.ParseUint(s[1:], 16, 64)
	if err != nil {
		return nil, decodeErr(nil, "unknown reference syntax", "value", s)
	}
	return d.row(id, depth+1)
}

func (d *decoder) object(m map[string]any, depth int) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, c := range m {
		n, err := d.value(c, depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, nil
}

func (d *decoder) element(t []any, depth int) (ui.Node, error) {
	typ, ok := t[1].(string)
	if !ok || typ == "" {
		return nil, decodeErr(nil, "element type must be a non-empty string")
	}
	el := &ui.Element{Type: typ}
	switch k := t[2].(type) {
	case nil:
	case string:
		el.Key = k
	default:
		return nil, decodeErr(nil, "element key must be a string or null", "type", typ)
	}
	switch p := t[3].(type) {
	case nil:
		el.Props = ui.Props{}
	case map[string]any:
		props, err := d.object(p, depth)
		if err != nil {
			return nil, err
		}
		el.Props = props
	default:
		return nil, decodeErr(nil, "element props must be an object", "type", typ)
	}

	if strings.HasPrefix(typ, "$L") {
		tmpl, err := d.clientRef(typ)
		if err != nil {
			return nil, err
		}
		el.Type, el.Ref, el.Component = tmpl.Type, tmpl.Ref, tmpl.Component
	} else if strings.HasPrefix(typ, "$") {
		return nil, decodeErr(nil, "unknown element type reference", "type", typ)
	}
	return el, nil
}

func (d *decoder) clientRef(typ string) (*ui.Element, error) {
	id, err := strconv.ParseUint(typ[2:], 16, 64)
	if err != nil {
		return nil, decodeErr(nil, "malformed client reference", "type", typ)
	}
	if tmpl, ok := d.resolved[id]; ok {
		return tmpl, nil
	}
	rw, ok := d.rows[id]
	if !ok || rw.tag != 'I' {
		return nil, decodeErr(nil, "client reference to a non-import row", "row", id)
	}
	var ref ui.Reference
	if err := json.Unmarshal(rw.body, &ref); err != nil {
		return nil, decodeErr(err, "invalid import row", "row", id)
	}
	if ref.ID == "" || ref.Name == "" {
		return nil, decodeErr(nil, "import row needs id and name", "row", id)
	}
	if d.refs == nil {
		return nil, decodeErr(ui.ErrUnknownComponent, "no reference resolver configured", "component", ref.Name)
	}
	fn, err := d.refs.ResolveReference(d.ctx, ref)
	if err != nil {
		return nil, decodeErr(err, "resolve client reference", "component", ref.Name, "module", ref.ID)
	}
	if fn == nil {
		return nil, decodeErr(ui.ErrUnknownComponent, "resolver returned no component", "component", ref.Name)
	}
	tmpl := &ui.Element{Type: ref.Name, Ref: &ref, Component: fn}
	d.resolved[id] = tmpl
	return tmpl, nil
}
