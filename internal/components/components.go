// Package components holds the client components shipped with the server:
// the issue list pieces used by the repository pages.
package components

import (
	"fmt"

	"go.trai.ch/zerr"

	"github.com/IvanBrykalov/fragcache/ui"
)

var (
	IssueRowRef = ui.Reference{
		ID:     "./src/app/(components)/issues/issue-row.tsx",
		Name:   "IssueRow",
		Chunks: []string{"issues"},
	}
	LabelBadgeRef = ui.Reference{
		ID:   "./src/app/(components)/label-badge.tsx",
		Name: "LabelBadge",
	}
)

// References lists every shipped component, for building a module map.
func References() []ui.Reference { return []ui.Reference{IssueRowRef, LabelBadgeRef} }

// Register adds every shipped component to reg.
func Register(reg *ui.Registry) {
	reg.Register(IssueRowRef.Name, IssueRow)
	reg.Register(LabelBadgeRef.Name, LabelBadge)
}

// Registry returns a registry with every shipped component.
func Registry() *ui.Registry {
	reg := ui.NewRegistry()
	Register(reg)
	return reg
}

var statusIcon = map[string]string{
	"OPEN":        "text-success",
	"CLOSED":      "text-done",
	"NOT_PLANNED": "text-grey",
}

// IssueRow renders one issue of a repository issue list.
func IssueRow(p ui.Props) (ui.Node, error) {
	title, _ := p["title"].(string)
	if title == "" {
		return nil, zerr.New("issue row: missing title")
	}
	status, _ := p["status"].(string)
	icon, ok := statusIcon[status]
	if !ok {
		return nil, zerr.With(zerr.New(fmt.Sprintf("issue row: unknown status %q", status)), "status", status)
	}
	href := fmt.Sprintf("/%v/%v/issues/%v", p["repository_owner"], p["repository_name"], p["number"])

	meta := []ui.Node{"#", p["number"]}
	if n := p["no_of_comments"]; n != nil && fmt.Sprint(n) != "0" {
		meta = append(meta, " · ", n, " comments")
	}
	return ui.El("div", ui.Props{"className": "relative flex w-full items-start gap-2.5 py-2 px-4"},
		ui.El("span", ui.Props{"className": "h-4 w-4 flex-shrink-0 relative top-1 " + icon, "aria-label": status}),
		ui.El("div", ui.Props{"className": "flex w-full flex-col items-start gap-1.5"},
			ui.El("a", ui.Props{"href": href, "className": "text-lg font-semibold text-foreground"}, title),
			p["labels"],
			ui.El("small", ui.Props{"className": "text-grey"}, meta),
		),
	), nil
}

// LabelBadge renders an issue label.
func LabelBadge(p ui.Props) (ui.Node, error) {
	name, _ := p["name"].(string)
	color, _ := p["color"].(string)
	if color == "" {
		color = "ededed"
	}
	return ui.El("span", ui.Props{
		"className": "rounded-full px-2 text-xs font-medium",
		"style":     "background-color:#" + color,
	}, name), nil
}

// Issue is the data behind an issue row.
type Issue struct {
	Number   int
	Title    string
	Status   string
	Comments int
	Labels   []string
}

// IssueList builds the server tree of a repository's issue list, with each
// row as a client component.
func IssueList(owner, repo string, issues []Issue) *ui.Element {
	rows := make([]ui.Node, 0, len(issues))
	for _, is := range issues {
		labels := make([]ui.Node, 0, len(is.Labels))
		for _, l := range is.Labels {
			labels = append(labels, ui.Client(LabelBadgeRef, ui.Props{"name": l}))
		}
		row := ui.Client(IssueRowRef, ui.Props{
			"number":           is.Number,
			"title":            is.Title,
			"status":           is.Status,
			"no_of_comments":   is.Comments,
			"repository_owner": owner,
			"repository_name":  repo,
			"labels":           labels,
		})
		row.Key = fmt.Sprint(is.Number)
		rows = append(rows, ui.El("li", nil, row))
	}
	return ui.El("section", ui.Props{"id": "issues"},
		ui.El("h2", nil, owner, "/", repo),
		ui.El("ul", ui.Props{"className": "divide-y"}, rows),
	)
}
