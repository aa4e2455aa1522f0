package codec

import (
	"errors"
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

var (
	// ErrDecode marks every failure to turn a payload into an element tree:
	// malformed rows, invalid JSON, a missing root, unknown references or a
	// server-side error row.
	ErrDecode = errors.New("codec: payload decode failed")

	// ErrEncode is returned for trees that have no payload form.
	ErrEncode = errors.New("codec: payload encode failed")

	// ErrServerRender is the cause of a decode failure due to an E row.
	ErrServerRender = errors.New("codec: server render error")
)

// describe wraps sentinel (and cause, if any) in a zerr error whose message
// is msg followed by the key/value pairs, e.g. "malformed row (line=3)".
// The pairs are also attached as zerr metadata for structured logging.
func describe(sentinel, cause error, msg string, kv ...any) error {
	var b strings.Builder
	b.WriteString(msg)
	sep := " ("
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, "%s%v=%v", sep, kv[i], kv[i+1])
		sep = ", "
	}
	if sep == ", " {
		b.WriteByte(')')
	}

	inner := sentinel
	if cause != nil {
		inner = fmt.Errorf("%w: %w", sentinel, cause)
	}
	err := zerr.Wrap(inner, b.String())
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			err = zerr.With(err, k, kv[i+1])
		}
	}
	return err
}

func decodeErr(cause error, msg string, kv ...any) error {
	return describe(ErrDecode, cause, msg, kv...)
}

func encodeErr(msg string, kv ...any) error {
	return describe(ErrEncode, nil, msg, kv...)
}
