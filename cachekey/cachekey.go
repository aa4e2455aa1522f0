// Package cachekey builds canonical cache keys.
//
// Of serializes an argument list to canonical JSON (RFC 8785), so two
// argument lists that are structurally equal, element by element and in the
// same order, map to the same key whatever their Go representation
// (map iteration order, number formatting, struct vs. map).
package cachekey

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"go.trai.ch/zerr"
)

// ErrUnencodable is returned when an argument has no JSON form.
var ErrUnencodable = errors.New("cachekey: argument is not JSON-encodable")

// Of returns the canonical key of args.
func Of(args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", zerr.Wrap(fmt.Errorf("%w: %w", ErrUnencodable, err), "marshal key arguments")
	}
	canon, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", zerr.Wrap(fmt.Errorf("%w: %w", ErrUnencodable, err), "canonicalize key arguments")
	}
	return string(canon), nil
}

// MustOf is Of for arguments known to be encodable, such as strings.
func MustOf(args ...any) string {
	k, err := Of(args...)
	if err != nil {
		panic(err)
	}
	return k
}

// Digest shortens a key to a fixed 16-hex-digit xxhash. Digests trade
// memory for a small collision probability; use them only for keys whose
// length matters more than exactness.
func Digest(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// Readme is the page layer's key for a repository README fragment.
func Readme(user, repository string) string {
	return "readme:" + strings.ToLower(user) + "/" + strings.ToLower(repository)
}
