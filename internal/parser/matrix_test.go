package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestBuildGridExpandsSpans(t *testing.T) {
	doc := mustDoc(t, `<table>
		<tr><td rowspan="2" colspan="2">A</td><td>B</td></tr>
		<tr><td>C</td></tr>
	</table>`)

	grid := BuildGrid(doc.Find("table"))
	require.False(t, grid.Empty())
	require.Equal(t, 1, grid.MaxRow())
	require.Equal(t, 2, grid.MaxCol(0))
	require.Equal(t, 2, grid.MaxCol(1))

	a00, ok := grid.CellIndex(0, 0)
	require.True(t, ok)
	a01, ok := grid.CellIndex(0, 1)
	require.True(t, ok)
	a11, ok := grid.CellIndex(1, 1)
	require.True(t, ok)
	require.Equal(t, a00, a01)
	require.Equal(t, a00, a11)

	require.Equal(t, "B", grid.Cell(0, 2).Text())
	require.Equal(t, "C", grid.Cell(1, 2).Text())
}

func TestBuildGridLaterCellsFlowPastSpans(t *testing.T) {
	doc := mustDoc(t, `<table>
		<tr><td rowspan="2">P</td><td>X</td></tr>
		<tr><td>Y</td></tr>
	</table>`)

	grid := BuildGrid(doc.Find("table"))
	p0, _ := grid.CellIndex(0, 0)
	p1, _ := grid.CellIndex(1, 0)
	require.Equal(t, p0, p1)
	require.Equal(t, "Y", grid.Cell(1, 1).Text())
}

func TestBuildGridBadSpanAttributes(t *testing.T) {
	doc := mustDoc(t, `<table>
		<tr><td rowspan="abc" colspan="0">A</td><td>B</td></tr>
	</table>`)

	grid := BuildGrid(doc.Find("table"))
	require.Equal(t, 0, grid.MaxRow())
	require.Equal(t, "A", grid.Cell(0, 0).Text())
	require.Equal(t, "B", grid.Cell(0, 1).Text())
	_, ok := grid.CellIndex(1, 0)
	require.False(t, ok)
}

func TestBuildGridEmptyTable(t *testing.T) {
	doc := mustDoc(t, `<table></table>`)
	grid := BuildGrid(doc.Find("table"))
	require.True(t, grid.Empty())
	require.Nil(t, grid.Cell(0, 0))
}
