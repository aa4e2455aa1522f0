// Package ui is the element model shared by the payload codec, the
// resolver and the HTML renderer.
//
// A Node is one of: nil, bool (renders nothing), string, a number, *Element
// or a []Node / []any list. Element children live in Props["children"].
package ui

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrUnknownComponent is returned when a client component is not registered.
	ErrUnknownComponent = errors.New("ui: unknown client component")

	// ErrUnsafeElement is returned for element types that carry active
	// content, such as script or style.
	ErrUnsafeElement = errors.New("ui: unsafe element")
)

// Node is any renderable value.
type Node = any

// Props are element properties.
type Props map[string]any

// Children returns the children prop or nil.
func (p Props) Children() Node {
	if p == nil {
		return nil
	}
	return p["children"]
}

// Reference points at a client component module, as named by the server.
type Reference struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Chunks []string `json:"chunks,omitempty" yaml:"chunks,omitempty"`
}

// ComponentFunc renders a client component from its props.
type ComponentFunc func(props Props) (Node, error)

// Element is a host element (Type is a tag name) or, when Ref is set, a
// client component. Component is filled in by decoding; an unresolved
// client element cannot be rendered.
type Element struct {
	Type      string
	Key       string
	Props     Props
	Ref       *Reference
	Component ComponentFunc
}

// El builds a host element with optional children.
func El(tag string, props Props, children ...Node) *Element {
	p := Props{}
	for k, v := range props {
		p[k] = v
	}
	switch len(children) {
	case 0:
	case 1:
		p["children"] = children[0]
	default:
		p["children"] = append([]Node(nil), children...)
	}
	return &Element{Type: tag, Props: p}
}

// Client builds an unresolved client component element.
func Client(ref Reference, props Props) *Element {
	return &Element{Type: ref.Name, Props: props, Ref: &ref}
}

// Registry maps component names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu sync.RWMutex
	m  map[string]ComponentFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]ComponentFunc)}
}

// Register adds or replaces a component.
func (r *Registry) Register(name string, fn ComponentFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[name] = fn
}

// Lookup returns the component registered under name.
func (r *Registry) Lookup(name string) (ComponentFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.m[name]
	return fn, ok
}

// Names lists registered components in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for n := range r.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
