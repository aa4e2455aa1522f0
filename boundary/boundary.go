// Package boundary isolates rendering failures of cached fragments. A
// Boundary renders its child into a buffer and, if the child fails or
// panics, writes a fallback panel in its place.
package boundary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/a-h/templ"
	"go.trai.ch/zerr"

	"github.com/IvanBrykalov/fragcache/resolver"
	"github.com/IvanBrykalov/fragcache/ui"
)

// ErrPanic marks a child that panicked while rendering.
var ErrPanic = errors.New("boundary: cached component panicked")

// Observer is notified each time a fallback replaces a child.
type Observer interface {
	Fallback(mode resolver.Mode)
}

// Options configures a Boundary.
type Options struct {
	Mode     resolver.Mode
	Logger   *slog.Logger
	Observer Observer
}

// Boundary catches child failures. Once a child has failed, the boundary
// keeps rendering the fallback without calling any child until Reset.
type Boundary struct {
	mode resolver.Mode
	log  *slog.Logger
	obs  Observer

	mu  sync.Mutex
	err error
}

// New returns a boundary in its initial, non-failed state.
func New(opt Options) *Boundary {
	b := &Boundary{mode: opt.Mode, log: opt.Logger, obs: opt.Observer}
	if b.log == nil {
		b.log = slog.Default()
	}
	return b
}

// Wrap returns a component that renders child, or the fallback when child
// returns an error or panics. The child's error never reaches the caller;
// only write errors of the output itself do, and the render context's own
// error when the caller went away, which neither fails the boundary nor
// renders the fallback.
func (b *Boundary) Wrap(child templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := b.Err(); err != nil {
			return Fallback(err).Render(ctx, w)
		}

		var buf bytes.Buffer
		if err := renderSafely(ctx, child, &buf); err != nil {
			if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
				return cerr
			}
			b.fail(err)
			return Fallback(b.Err()).Render(ctx, w)
		}
		_, err := buf.WriteTo(w)
		return err
	})
}

// Err returns the captured failure, or nil.
func (b *Boundary) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Reset clears the failed state so the next render tries the child again.
func (b *Boundary) Reset() {
	b.mu.Lock()
	b.err = nil
	b.mu.Unlock()
}

func (b *Boundary) fail(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()

	if b.mode == resolver.ClientSide {
		b.log.Error("Error client rendering the cached component", "err", err)
	} else {
		b.log.Error("Error SSR'ing the cached component", "err", err)
	}
	if b.obs != nil {
		b.obs.Fallback(b.mode)
	}
}

func renderSafely(ctx context.Context, c templ.Component, w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = zerr.With(zerr.Wrap(ErrPanic, fmt.Sprintf("render child: %v", r)), "panic", fmt.Sprint(r))
		}
	}()
	if c == nil {
		return nil
	}
	return c.Render(ctx, w)
}

// Fallback is the panel shown in place of a failed fragment.
func Fallback(err error) templ.Component {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ui.Component(ui.El("div", ui.Props{"className": "flex flex-wrap gap-2"},
		ui.El("span", ui.Props{"className": "text-xl font-semibold"}, "Error rendering the cached component :"),
		ui.El("code", ui.Props{"className": "rounded-md bg-neutral text-red-400 px-1.5 py-1"}, msg),
	))
}
