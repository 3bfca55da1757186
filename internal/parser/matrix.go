package parser

import (
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

type gridPos struct {
	row int
	col int
}

// Grid is the dense cell matrix of one HTML table with row/column spans
// expanded. Cells live in an arena; every grid position a span occupies maps
// to the arena index of the physical cell, so span continuation can be
// detected by index equality instead of text comparison.
type Grid struct {
	cells  []*goquery.Selection
	index  map[gridPos]int
	maxRow int
}

// BuildGrid expands a table selection into a Grid. For each physical cell the
// column cursor advances to the first free column of the current row (spans
// from earlier rows may have claimed columns already), then the cell's arena
// index is written into every position its rowspan/colspan covers.
func BuildGrid(table *goquery.Selection) *Grid {
	g := &Grid{index: make(map[gridPos]int), maxRow: -1}

	table.Find("tr").Each(func(r int, tr *goquery.Selection) {
		if r > g.maxRow {
			g.maxRow = r
		}
		col := 0
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			for {
				if _, taken := g.index[gridPos{r, col}]; !taken {
					break
				}
				col++
			}

			rs := spanAttr(td, "rowspan")
			cs := spanAttr(td, "colspan")

			id := len(g.cells)
			g.cells = append(g.cells, td)

			for i := 0; i < rs; i++ {
				for j := 0; j < cs; j++ {
					g.index[gridPos{r + i, col + j}] = id
					if r+i > g.maxRow {
						g.maxRow = r + i
					}
				}
			}
			col += cs
		})
	})

	return g
}

// Empty reports whether the table produced no cells.
func (g *Grid) Empty() bool {
	return len(g.cells) == 0
}

// MaxRow returns the highest row index the grid covers.
func (g *Grid) MaxRow() int {
	return g.maxRow
}

// CellIndex returns the arena index of the cell occupying (row, col).
func (g *Grid) CellIndex(row, col int) (int, bool) {
	id, ok := g.index[gridPos{row, col}]
	return id, ok
}

// Cell returns the cell selection at (row, col), or nil when the position is
// not covered.
func (g *Grid) Cell(row, col int) *goquery.Selection {
	id, ok := g.index[gridPos{row, col}]
	if !ok {
		return nil
	}
	return g.cells[id]
}

// MaxCol returns the highest column index occupied in the given row.
func (g *Grid) MaxCol(row int) int {
	max := 0
	for p := range g.index {
		if p.row == row && p.col > max {
			max = p.col
		}
	}
	return max
}

// spanAttr reads a rowspan/colspan attribute, treating missing or
// non-numeric values as 1.
func spanAttr(cell *goquery.Selection, name string) int {
	raw, ok := cell.Attr(name)
	if !ok || raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
