package resolver

import (
	"context"
	"fmt"
	"io"

	"go.trai.ch/zerr"

	"github.com/IvanBrykalov/fragcache/codec"
	"github.com/IvanBrykalov/fragcache/manifest"
	"github.com/IvanBrykalov/fragcache/ui"
)

// Backend decodes a payload stream into an element tree.
type Backend interface {
	Decode(ctx context.Context, r io.Reader) (ui.Node, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, r io.Reader) (ui.Node, error)

func (f BackendFunc) Decode(ctx context.Context, r io.Reader) (ui.Node, error) { return f(ctx, r) }

// HostBackend decodes with the server module map: every client reference
// must be listed in m and registered in reg.
func HostBackend(m *manifest.Manifest, reg *ui.Registry) Backend {
	refs := m.Resolver(reg)
	return BackendFunc(func(ctx context.Context, r io.Reader) (ui.Node, error) {
		return codec.Decode(ctx, r, refs)
	})
}

// ClientBackend decodes without a module map and loads client components
// from reg by export name at runtime.
func ClientBackend(reg *ui.Registry) Backend {
	refs := codec.ResolverFunc(func(_ context.Context, ref ui.Reference) (ui.ComponentFunc, error) {
		fn, ok := reg.Lookup(ref.Name)
		if !ok {
			return nil, zerr.With(zerr.Wrap(ui.ErrUnknownComponent, fmt.Sprintf("load client component %q", ref.Name)), "component", ref.Name)
		}
		return fn, nil
	})
	return BackendFunc(func(ctx context.Context, r io.Reader) (ui.Node, error) {
		return codec.Decode(ctx, r, refs)
	})
}
