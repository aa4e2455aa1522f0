package resolver

import (
	"errors"
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("resolver: unknown mode")

// Mode selects the decoding backend: host-side (server rendering) or
// client-side (in the browser runtime).
type Mode uint8

const (
	HostSide Mode = iota
	ClientSide
)

// String returns "ssr" or "csr".
func (m Mode) String() string {
	if m == ClientSide {
		return "csr"
	}
	return "ssr"
}

// ParseMode accepts ssr/host and csr/client, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ssr", "host":
		return HostSide, nil
	case "csr", "client":
		return ClientSide, nil
	default:
		return HostSide, zerr.With(zerr.Wrap(ErrUnknownMode, fmt.Sprintf("parse mode %q", s)), "mode", s)
	}
}
