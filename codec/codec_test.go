package codec_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/fragcache/codec"
	"github.com/IvanBrykalov/fragcache/ui"
)

var issueRowRef = ui.Reference{ID: "./src/app/(components)/issues/issue-row.tsx", Name: "IssueRow", Chunks: []string{"issues"}}

func issueRow(p ui.Props) (ui.Node, error) {
	return ui.El("li", ui.Props{"className": "issue"}, "#", p["number"], " ", p["title"]), nil
}

// countingRefs resolves against a registry and counts calls.
type countingRefs struct {
	reg   *ui.Registry
	calls int
}

func (c *countingRefs) ResolveReference(_ context.Context, ref ui.Reference) (ui.ComponentFunc, error) {
	c.calls++
	fn, ok := c.reg.Lookup(ref.Name)
	if !ok {
		return nil, ui.ErrUnknownComponent
	}
	return fn, nil
}

func newRefs() *countingRefs {
	reg := ui.NewRegistry()
	reg.Register("IssueRow", issueRow)
	return &countingRefs{reg: reg}
}

func html(t *testing.T, n ui.Node) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, ui.Render(context.Background(), &buf, n))
	return buf.String()
}

func TestEncode_Shape(t *testing.T) {
	t.Parallel()

	tree := ui.El("ul", ui.Props{"className": "issues"},
		ui.Client(issueRowRef, ui.Props{"number": 1, "title": "$100 bounty"}),
		ui.Client(issueRowRef, ui.Props{"number": 2, "title": "docs"}),
	)
	payload, err := codec.Encode(tree)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(payload, "\n"), "\n")
	require.Len(t, lines, 2, "one import row shared by both client elements plus the root")
	assert.True(t, strings.HasPrefix(lines[0], `1:I{"id":"./src/app/(components)/issues/issue-row.tsx","name":"IssueRow"`))
	assert.True(t, strings.HasPrefix(lines[1], `0:["$","ul",null,`))
	assert.Contains(t, lines[1], `"$L1"`)
	assert.Contains(t, lines[1], `"$$100 bounty"`)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tree := ui.El("section", ui.Props{"id": "readme"},
		ui.El("h1", nil, "$HOME & friends"),
		&ui.Element{Type: "p", Key: "intro", Props: ui.Props{"children": "hello"}},
		ui.Client(issueRowRef, ui.Props{"number": 42, "title": "Crash"}),
	)
	payload, err := codec.Encode(tree)
	require.NoError(t, err)

	refs := newRefs()
	got, err := codec.DecodeString(context.Background(), payload, refs)
	require.NoError(t, err)

	assert.Equal(t,
		`<section id="readme"><h1>$HOME &amp; friends</h1><p>hello</p><li class="issue">#42 Crash</li></section>`,
		html(t, got))
	assert.Equal(t, 1, refs.calls)

	p := got.(*ui.Element).Props.Children().([]ui.Node)[1].(*ui.Element)
	assert.Equal(t, "intro", p.Key)
}

func TestDecode_ImportsResolvedOncePerRow(t *testing.T) {
	t.Parallel()

	payload := "1:I{\"id\":\"./issue-row\",\"name\":\"IssueRow\"}\n" +
		"0:[[\"$\",\"$L1\",null,{\"number\":1,\"title\":\"a\"}],[\"$\",\"$L1\",null,{\"number\":2,\"title\":\"b\"}]]\n"
	refs := newRefs()
	got, err := codec.DecodeString(context.Background(), payload, refs)
	require.NoError(t, err)
	assert.Equal(t, 1, refs.calls)
	assert.Equal(t, `<li class="issue">#1 a</li><li class="issue">#2 b</li>`, html(t, got))
}

func TestDecode_OutlinedRowsAndOrder(t *testing.T) {
	t.Parallel()

	// The root may arrive after the rows it points to, and without a
	// trailing newline.
	payload := "2:\"world\"\n0:[\"$\",\"b\",null,{\"children\":[\"hello \",\"$2\"]}]"
	got, err := codec.DecodeString(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.Equal(t, "<b>hello world</b>", html(t, got))
}

func TestDecode_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		is      error
		msg     string
	}{
		{"empty", "", nil, "empty payload"},
		{"garbage bytes", "\x00\x01\x02", nil, "malformed row"},
		{"non-hex id", "zz:1\n", nil, "malformed row (line=1)"},
		{"missing root", "1:\"x\"\n", nil, "missing root row"},
		{"bad json", "0:[\"$\",\"div\"\n", nil, "invalid model JSON"},
		{"duplicate row", "0:1\n0:2\n", nil, "duplicate row id (line=2, row=0)"},
		{"cycle", "0:\"$1\"\n1:\"$0\"\n", nil, "cyclic row reference"},
		{"unknown component", "1:I{\"id\":\"./x\",\"name\":\"Nope\"}\n0:[\"$\",\"$L1\",null,{}]\n", ui.ErrUnknownComponent, "resolve client reference (component=Nope, module=./x)"},
		{"reference to model row", "1:\"x\"\n0:[\"$\",\"$L1\",null,{}]\n", nil, "non-import row"},
		{"server error row", "0:E{\"message\":\"readme not found\"}\n", codec.ErrServerRender, "readme not found"},
		{"bad element key", "0:[\"$\",\"div\",1,{}]\n", nil, "element key"},
		{"stray reference", "0:\"$Lx\"\n", nil, "client reference outside element type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := codec.DecodeString(context.Background(), tt.payload, newRefs())
			require.Error(t, err)
			assert.ErrorIs(t, err, codec.ErrDecode)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDecode_NoResolver(t *testing.T) {
	t.Parallel()

	payload := "1:I{\"id\":\"./x\",\"name\":\"IssueRow\"}\n0:[\"$\",\"$L1\",null,{}]\n"
	_, err := codec.DecodeString(context.Background(), payload, nil)
	require.ErrorIs(t, err, codec.ErrDecode)
	assert.ErrorIs(t, err, ui.ErrUnknownComponent)
}

func TestDecode_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := codec.DecodeString(ctx, "0:1\n", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEncode_Failures(t *testing.T) {
	t.Parallel()

	_, err := codec.Encode(ui.El("div", ui.Props{"onClick": func() {}}))
	require.ErrorIs(t, err, codec.ErrEncode)

	_, err = codec.Encode(&ui.Element{Type: "X", Component: issueRow})
	require.ErrorIs(t, err, codec.ErrEncode)

	_, err = codec.Encode(&ui.Element{Type: "$bad"})
	require.ErrorIs(t, err, codec.ErrEncode)
	assert.Contains(t, err.Error(), "invalid element type (type=$bad)")
}

func TestEncodeError(t *testing.T) {
	t.Parallel()

	payload := codec.EncodeError(errors.New(`db "issues" unavailable`))
	assert.Equal(t, "0:E{\"message\":\"db \\\"issues\\\" unavailable\"}\n", payload)

	_, err := codec.DecodeString(context.Background(), payload, nil)
	require.ErrorIs(t, err, codec.ErrServerRender)
	assert.Contains(t, err.Error(), `db "issues" unavailable`)
}
