package timetable

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"uoacal/internal/model"
)

// minCellLines is the number of text lines a course link must carry:
// time range, course code, room, building.
const minCellLines = 4

// ParseCell extracts a course from a course-bearing timetable cell.
//
// The cell's link text is split into lines at <br> elements; any other
// markup inside the link is dropped and only its text kept. Cells without a
// link, or whose link has fewer than four non-empty lines, yield false.
func ParseCell(cell *goquery.Selection, day model.Weekday) (model.Course, bool) {
	link := findLink(cell)
	if link == nil {
		return model.Course{}, false
	}

	lines, raw := linkLines(link)
	if len(lines) < minCellLines {
		return model.Course{}, false
	}

	return model.Course{
		Time:     lines[0],
		Code:     collapseSpaces(lines[1]),
		Room:     lines[2],
		Building: lines[3],
		Weekday:  day,
		RawText:  raw,
	}, true
}

// findLink locates the course hyperlink: a direct child of the cell first,
// then one inside the cell's inline text container, then any nested link.
func findLink(cell *goquery.Selection) *html.Node {
	if a := cell.ChildrenFiltered("a").First(); a.Length() > 0 {
		return a.Get(0)
	}
	if span := cell.Find("span").First(); span.Length() > 0 {
		if a := span.Find("a").First(); a.Length() > 0 {
			return a.Get(0)
		}
	}
	if a := cell.Find("a").First(); a.Length() > 0 {
		return a.Get(0)
	}
	return nil
}

// linkLines walks the link's descendants and returns the trimmed, non-empty
// text lines separated by <br>, plus the full text with breaks as newlines.
func linkLines(link *html.Node) ([]string, string) {
	var (
		lines []string
		cur   strings.Builder
		raw   strings.Builder
	)

	flush := func() {
		if line := strings.TrimSpace(cur.String()); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				cur.WriteString(c.Data)
				raw.WriteString(c.Data)
			case html.ElementNode:
				if c.DataAtom == atom.Br {
					flush()
					raw.WriteByte('\n')
					continue
				}
				walk(c)
			}
		}
	}
	walk(link)
	flush()

	return lines, raw.String()
}

// collapseSpaces replaces every run of whitespace with a single space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
