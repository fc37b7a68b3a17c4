package render

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	mdtable "github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlTable is a table extracted from an HTML fragment.
type htmlTable struct {
	Header []string
	Rows   [][]string
}

// parseHTMLTable extracts the first <table> in fragment. Header cells come
// from <thead>, or from the first row if it only holds <th> cells.
func parseHTMLTable(fragment string) (*htmlTable, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	tbl := findElement(doc, atom.Table)
	if tbl == nil {
		return nil, fmt.Errorf("no table in fragment")
	}

	out := &htmlTable{}
	var walk func(n *html.Node, inHead bool)
	walk = func(n *html.Node, inHead bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Thead:
				walk(c, true)
			case atom.Tr:
				cells, allTH := rowCells(c)
				// A second header row may name the index; skip it when empty.
				if inHead && out.Header != nil {
					if !blank(cells) {
						out.Rows = append(out.Rows, cells)
					}
					continue
				}
				if inHead || (out.Header == nil && len(out.Rows) == 0 && allTH) {
					out.Header = cells
					continue
				}
				out.Rows = append(out.Rows, cells)
			case atom.Table:
				// nested tables are not descended into
			default:
				walk(c, inHead)
			}
		}
	}
	walk(tbl, false)
	return out, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func rowCells(tr *html.Node) ([]string, bool) {
	var cells []string
	allTH := true
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom != atom.Th && c.DataAtom != atom.Td {
			continue
		}
		if c.DataAtom == atom.Td {
			allTH = false
		}
		cells = append(cells, strings.TrimSpace(textContent(c)))
	}
	return cells, allTH
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// prettyTable renders an HTML table fragment as a box-drawn text table.
// Fragments without a table are returned as plain text.
func prettyTable(fragment string) string {
	t, err := parseHTMLTable(fragment)
	if err != nil {
		return strings.TrimSpace(textContent(mustParse(fragment)))
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	if t.Header != nil {
		tw.AppendHeader(toRow(t.Header))
	}
	for _, r := range t.Rows {
		tw.AppendRow(toRow(r))
	}
	return tw.Render()
}

func mustParse(fragment string) *html.Node {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return &html.Node{Type: html.TextNode, Data: fragment}
	}
	return doc
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		mdtable.NewTablePlugin(),
	),
)

// markdownTable converts an HTML fragment to markdown.
func markdownTable(fragment string) (string, error) {
	md, err := mdConverter.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}
