package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"collegebot/internal/models"
)

// bellTablesSelector locates the bell schedule tables inside the content
// region of the bells page: the regular-day table first, the Monday table
// second.
const bellTablesSelector = "div.item-page table"

// ParseBellPage builds the pair-number → start-time lookup from the bells
// page. A page without tables yields an empty table; malformed rows are
// skipped.
func ParseBellPage(doc *goquery.Document) models.BellTable {
	table := make(models.BellTable)

	tables := doc.Find(bellTablesSelector)
	if tables.Length() == 0 {
		return table
	}

	parseNormalBells(tables.Eq(0), table)
	if tables.Length() >= 2 {
		parseMondayBells(tables.Eq(1), table)
	}

	return table
}

// parseNormalBells reads the regular-day table: every even row (0-based) is a
// period row, numbered sequentially from 1.
func parseNormalBells(sel *goquery.Selection, table models.BellTable) {
	pair := 1
	sel.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i%2 != 0 {
			return
		}
		period := bellRowText(row)
		if period == "" {
			return
		}
		t := table[pair]
		t.Normal = period
		table[pair] = t
		pair++
	})
}

// parseMondayBells reads the Monday table: the first row is the shortened
// period 0, thereafter every odd row maps to sequential periods from 1.
func parseMondayBells(sel *goquery.Selection, table models.BellTable) {
	pair := 1
	sel.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			if period := bellRowText(row); period != "" {
				t := table[0]
				t.Monday = period
				table[0] = t
			}
			return
		}
		if i%2 == 0 {
			return
		}
		period := bellRowText(row)
		if period == "" {
			return
		}
		t := table[pair]
		t.Monday = period
		table[pair] = t
		pair++
	})
}

// bellRowText extracts the time range from the second cell of a bell row.
func bellRowText(row *goquery.Selection) string {
	cells := row.Find("td")
	if cells.Length() <= 1 {
		return ""
	}
	text := strings.ReplaceAll(cells.Eq(1).Text(), "\n", " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))
}
