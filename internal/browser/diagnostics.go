// internal/browser/diagnostics.go
package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Control is one form control found on a page.
type Control struct {
	Tag     string `json:"tag"`
	Type    string `json:"type,omitempty"`
	Name    string `json:"name,omitempty"`
	ID      string `json:"id,omitempty"`
	Value   string `json:"value,omitempty"`
	Checked bool   `json:"checked,omitempty"`
}

func (c Control) String() string {
	var b strings.Builder
	b.WriteString(c.Tag)
	if c.Type != "" {
		fmt.Fprintf(&b, "[type=%s]", c.Type)
	}
	if c.Name != "" {
		fmt.Fprintf(&b, "[name=%s]", c.Name)
	}
	if c.ID != "" {
		fmt.Fprintf(&b, "#%s", c.ID)
	}
	if c.Value != "" && c.Type != "password" {
		fmt.Fprintf(&b, " value=%q", c.Value)
	}
	if c.Checked {
		b.WriteString(" checked")
	}
	return b.String()
}

// PageSummary is a compact view of a page for failure reports and for
// writing locator tables against a new firmware.
type PageSummary struct {
	Title    string    `json:"title"`
	Forms    int       `json:"forms"`
	Controls []Control `json:"controls"`
}

// maxControls keeps summaries readable on busy admin pages.
const maxControls = 40

// SummarizeControls lists the title and form controls of an HTML document.
// Password values are never included.
func SummarizeControls(html string) (PageSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageSummary{}, fmt.Errorf("parsing page: %w", err)
	}

	summary := PageSummary{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Forms: doc.Find("form").Length(),
	}
	doc.Find("input, select, button, textarea").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(summary.Controls) >= maxControls {
			return false
		}
		c := Control{
			Tag:  goquery.NodeName(sel),
			Type: strings.ToLower(sel.AttrOr("type", "")),
			Name: sel.AttrOr("name", ""),
			ID:   sel.AttrOr("id", ""),
		}
		if c.Type == "hidden" {
			return true
		}
		if c.Type != "password" {
			c.Value = sel.AttrOr("value", "")
			if c.Tag == "button" && c.Value == "" {
				c.Value = strings.TrimSpace(sel.Text())
			}
		}
		_, c.Checked = sel.Attr("checked")
		summary.Controls = append(summary.Controls, c)
		return true
	})
	return summary, nil
}

// String renders the summary on one line per control.
func (p PageSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "title=%q forms=%d", p.Title, p.Forms)
	for _, c := range p.Controls {
		b.WriteString("\n  ")
		b.WriteString(c.String())
	}
	return b.String()
}
