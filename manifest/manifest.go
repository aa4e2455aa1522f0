// Package manifest holds the server-side module map used to decode payloads
// during server rendering. It maps a client reference (module id and export
// name) to the component that implements it on the host.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/fragcache/codec"
	"github.com/IvanBrykalov/fragcache/ui"
)

var (
	// ErrUnknownReference is returned for references absent from the module map.
	ErrUnknownReference = errors.New("manifest: reference not in module map")
	// ErrInvalid is returned for manifests that fail to parse or validate.
	ErrInvalid = errors.New("manifest: invalid manifest")
)

// wildcard matches any export name of a module.
const wildcard = "*"

// Entry is the host-side location of one client export.
type Entry struct {
	// Specifier is the host module the export lives in.
	Specifier string `yaml:"specifier"`
	// Name is the component name looked up in the registry.
	Name string `yaml:"name"`
}

// Manifest is the SSR module map: ModuleMap[id][name].
type Manifest struct {
	ModuleMap map[string]map[string]Entry `yaml:"moduleMap"`
}

// Load reads a YAML manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(fmt.Errorf("%w: %w", ErrInvalid, err), fmt.Sprintf("read manifest %s", path)), "path", path)
	}
	return Parse(data)
}

// Parse decodes a YAML manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, zerr.Wrap(fmt.Errorf("%w: %w", ErrInvalid, err), "decode manifest")
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FromReferences builds a manifest where every reference maps to the
// registry component of the same name.
func FromReferences(refs ...ui.Reference) *Manifest {
	m := &Manifest{ModuleMap: make(map[string]map[string]Entry)}
	for _, r := range refs {
		exports := m.ModuleMap[r.ID]
		if exports == nil {
			exports = make(map[string]Entry)
			m.ModuleMap[r.ID] = exports
		}
		exports[r.Name] = Entry{Specifier: r.ID, Name: r.Name}
	}
	return m
}

func (m *Manifest) validate() error {
	if len(m.ModuleMap) == 0 {
		return zerr.Wrap(ErrInvalid, "moduleMap is empty")
	}
	for id, exports := range m.ModuleMap {
		for name, e := range exports {
			if e.Name == "" {
				return zerr.With(zerr.With(zerr.Wrap(ErrInvalid, fmt.Sprintf("entry %s#%s has no component name", id, name)), "id", id), "export", name)
			}
		}
	}
	return nil
}

// Lookup finds the entry for ref. An exact export name wins over "*".
func (m *Manifest) Lookup(ref ui.Reference) (Entry, bool) {
	exports, ok := m.ModuleMap[ref.ID]
	if !ok {
		return Entry{}, false
	}
	if e, ok := exports[ref.Name]; ok {
		return e, true
	}
	e, ok := exports[wildcard]
	return e, ok
}

// IDs lists the module ids in sorted order.
func (m *Manifest) IDs() []string {
	ids := make([]string, 0, len(m.ModuleMap))
	for id := range m.ModuleMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolver returns a codec.ReferenceResolver that maps references through
// the manifest and then to components in reg.
func (m *Manifest) Resolver(reg *ui.Registry) codec.ReferenceResolver {
	return codec.ResolverFunc(func(_ context.Context, ref ui.Reference) (ui.ComponentFunc, error) {
		e, ok := m.Lookup(ref)
		if !ok {
			return nil, zerr.With(zerr.With(zerr.Wrap(ErrUnknownReference,
				fmt.Sprintf("resolve reference %s#%s", ref.ID, ref.Name)), "id", ref.ID), "name", ref.Name)
		}
		fn, ok := reg.Lookup(e.Name)
		if !ok {
			return nil, zerr.With(zerr.With(zerr.Wrap(ui.ErrUnknownComponent,
				fmt.Sprintf("component %q (%s) not registered", e.Name, e.Specifier)), "component", e.Name), "specifier", e.Specifier)
		}
		return fn, nil
	})
}
