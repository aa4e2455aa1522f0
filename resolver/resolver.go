// Package resolver turns payloads into element trees once per payload and
// shares the result between every renderer that asks for it.
//
// Resolution is memoized on the canonical key of the payload alone. The
// mode passed with a request only chooses the backend when the payload is
// not resident yet; a later request in the other mode reuses the stored
// result.
package resolver

import (
	"context"
	"io"
	"log/slog"

	"github.com/a-h/templ"

	"github.com/IvanBrykalov/fragcache/cache"
	"github.com/IvanBrykalov/fragcache/cachekey"
	"github.com/IvanBrykalov/fragcache/codec"
	"github.com/IvanBrykalov/fragcache/future"
	"github.com/IvanBrykalov/fragcache/memo"
	"github.com/IvanBrykalov/fragcache/ui"
)

// Observer receives resolution signals. Implementations must be safe for
// concurrent use.
type Observer interface {
	// Resolved is called once per backend decode with its outcome.
	Resolved(mode Mode, err error)
	// StreamCanceled is called when a backend cancels its payload stream.
	StreamCanceled(mode Mode)
}

type noopObserver struct{}

func (noopObserver) Resolved(Mode, error) {}
func (noopObserver) StreamCanceled(Mode)  {}

// Options configures a Resolver. Zero values are safe.
type Options struct {
	// Capacity bounds the number of memoized payloads (default 100).
	Capacity int
	// Host decodes in HostSide mode; defaults to a decoder without client
	// components.
	Host Backend
	// Client decodes in ClientSide mode; defaults to an empty registry.
	Client Backend
	// DigestKeys stores entries under a 64-bit digest of the canonical key
	// instead of the key itself.
	DigestKeys bool

	Logger   *slog.Logger
	Observer Observer
	Metrics  cache.Metrics
}

// Resolver memoizes payload decoding. It is safe for concurrent use.
type Resolver struct {
	memo   *memo.Cache[ui.Node]
	host   Backend
	client Backend
	digest bool
	log    *slog.Logger
	obs    Observer
}

// New builds a Resolver with its own memo.
func New(opt Options) *Resolver {
	r := &Resolver{
		host:   opt.Host,
		client: opt.Client,
		digest: opt.DigestKeys,
		log:    opt.Logger,
		obs:    opt.Observer,
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.obs == nil {
		r.obs = noopObserver{}
	}
	if r.host == nil {
		r.host = BackendFunc(func(ctx context.Context, rd io.Reader) (ui.Node, error) {
			return codec.Decode(ctx, rd, nil)
		})
	}
	if r.client == nil {
		r.client = ClientBackend(ui.NewRegistry())
	}
	r.memo = memo.New[ui.Node](memo.Options{
		Capacity: opt.Capacity,
		Metrics:  opt.Metrics,
		Logger:   r.log,
	})
	return r
}

// Key returns the memo key of payload.
func (r *Resolver) Key(payload string) string {
	k := cachekey.MustOf(payload)
	if r.digest {
		return cachekey.Digest(k)
	}
	return k
}

// ResolveAsync returns the shared future for payload. On a miss the
// payload is decoded by the backend for mode on a detached goroutine.
func (r *Resolver) ResolveAsync(mode Mode, payload string) *future.Future[ui.Node] {
	return r.memo.Get(r.Key(payload), func() (ui.Node, error) {
		return r.decode(mode, payload)
	})
}

// Resolve waits for the element tree of payload. Cancelling ctx returns
// early for this caller only.
func (r *Resolver) Resolve(ctx context.Context, mode Mode, payload string) (ui.Node, error) {
	return r.ResolveAsync(mode, payload).Await(ctx)
}

// Forget drops the memoized result for payload, including a failure.
func (r *Resolver) Forget(payload string) bool { return r.memo.Forget(r.Key(payload)) }

// Stats reports memo counters; every miss is one backend decode.
func (r *Resolver) Stats() cache.Stats { return r.memo.Stats() }

// Len returns the number of memoized payloads.
func (r *Resolver) Len() int { return r.memo.Len() }

func (r *Resolver) decode(mode Mode, payload string) (ui.Node, error) {
	backend := r.host
	if mode == ClientSide {
		backend = r.client
		r.log.Info("running cache client for CSR...")
	} else {
		r.log.Info("running cache client for SSR...")
	}

	s := codec.EncodeToStream(payload,
		codec.WithStreamLogger(r.log),
		codec.WithCancelHook(func(string, error) { r.obs.StreamCanceled(mode) }),
	)
	defer s.Close()

	n, err := backend.Decode(context.Background(), s)
	r.obs.Resolved(mode, err)
	if err != nil {
		r.log.Debug("payload decode failed", "env", mode.String(), "stream_id", s.ID(), "err", err)
		return nil, err
	}
	return n, nil
}

// Component renders the element tree of payload. cacheKey identifies the
// fragment in logs; the memo key is derived from payload only. Resolution
// errors are returned to the caller, typically an error boundary.
func (r *Resolver) Component(mode Mode, payload, cacheKey string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		log := r.log.With("env", mode.String(), "cache_key", cacheKey)
		log.Debug("before use")
		n, err := r.Resolve(ctx, mode, payload)
		if err != nil {
			return err
		}
		log.Debug("after use")
		return ui.Render(ctx, w, n)
	})
}
