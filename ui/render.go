package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"go.trai.ch/zerr"
)

// maxDepth bounds component recursion.
const maxDepth = 256

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// unsafeElements run or load active content and are never rendered from a
// payload.
var unsafeElements = map[string]bool{
	"script": true, "style": true, "iframe": true, "frame": true,
	"object": true, "embed": true, "base": true,
}

// urlAttrs are sanitized with templ.URL.
var urlAttrs = map[string]bool{
	"href": true, "src": true, "action": true, "formaction": true,
	"poster": true, "cite": true, "xlink:href": true,
}

var attrAliases = map[string]string{
	"className": "class",
	"htmlFor":   "for",
}

// Component adapts a node tree to a templ component.
func Component(n Node) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Render(ctx, w, n)
	})
}

// Render writes the HTML form of n to w.
func Render(ctx context.Context, w io.Writer, n Node) error {
	return render(ctx, w, n, 0)
}

func render(ctx context.Context, w io.Writer, n Node, depth int) error {
	if depth > maxDepth {
		return errors.New("ui: element tree too deep")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch v := n.(type) {
	case nil, bool:
		return nil
	case string:
		_, err := io.WriteString(w, templ.EscapeString(v))
		return err
	case json.Number:
		_, err := io.WriteString(w, v.String())
		return err
	case float64:
		_, err := io.WriteString(w, strconv.FormatFloat(v, 'f', -1, 64))
		return err
	case int, int64, int32, uint, uint64:
		_, err := fmt.Fprint(w, v)
		return err
	case []Node:
		for _, c := range v {
			if err := render(ctx, w, c, depth+1); err != nil {
				return err
			}
		}
		return nil
	case *Element:
		return renderElement(ctx, w, v, depth)
	case templ.Component:
		return v.Render(ctx, w)
	default:
		return zerr.With(zerr.New(fmt.Sprintf("ui: unsupported node %T", n)), "type", fmt.Sprintf("%T", n))
	}
}

func renderElement(ctx context.Context, w io.Writer, el *Element, depth int) error {
	if el == nil {
		return nil
	}
	if el.Ref != nil || el.Component != nil {
		if el.Component == nil {
			return zerr.With(zerr.Wrap(ErrUnknownComponent, fmt.Sprintf("client component %q not resolved", el.Type)), "component", el.Type)
		}
		out, err := el.Component(el.Props)
		if err != nil {
			return zerr.With(zerr.Wrap(err, fmt.Sprintf("render client component %q", el.Type)), "component", el.Type)
		}
		return render(ctx, w, out, depth+1)
	}
	if !validName(el.Type) {
		return zerr.With(zerr.New(fmt.Sprintf("ui: invalid tag name %q", el.Type)), "tag", el.Type)
	}
	if unsafeElements[strings.ToLower(el.Type)] {
		return zerr.With(zerr.Wrap(ErrUnsafeElement, fmt.Sprintf("refuse <%s>", el.Type)), "tag", el.Type)
	}

	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(el.Type)
	writeAttrs(&b, el.Props)
	b.WriteByte('>')
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if voidElements[el.Type] {
		return nil
	}
	if err := render(ctx, w, el.Props.Children(), depth+1); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</"+el.Type+">")
	return err
}

// writeAttrs emits scalar props as attributes in sorted order. Children,
// nil/false values, nested objects, invalid names and on* event handlers
// are skipped. URL attributes with a non-http(s)/mailto/tel/ftp scheme are
// replaced by templ's failed-sanitization URL.
func writeAttrs(b *strings.Builder, p Props) {
	names := make([]string, 0, len(p))
	for k := range p {
		if k != "children" && k != "key" {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	for _, k := range names {
		name := k
		if alias, ok := attrAliases[k]; ok {
			name = alias
		}
		lower := strings.ToLower(name)
		if !validName(name) || strings.HasPrefix(lower, "on") {
			continue
		}
		var val string
		switch v := p[k].(type) {
		case bool:
			if v {
				b.WriteByte(' ')
				b.WriteString(name)
			}
			continue
		case string:
			val = v
		case json.Number:
			val = v.String()
		case float64:
			val = strconv.FormatFloat(v, 'f', -1, 64)
		case int, int64:
			val = fmt.Sprint(v)
		default:
			continue
		}
		if urlAttrs[lower] {
			val = string(templ.URL(val))
		}
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(templ.EscapeString(val))
		b.WriteByte('"')
	}
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == ':', r == '.':
		default:
			return false
		}
	}
	return true
}
