package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"collegebot/internal/models"
)

// timetableSelector matches the fixed style marker of the published
// timetable tables.
const timetableSelector = "table.MsoNormalTable"

// headerScanRows bounds how many leading rows are scanned for the group
// header; dateScanDepth bounds the ancestor walk of the date locator.
const (
	headerScanRows = 5
	dateScanDepth  = 20
)

// Parser reconstructs per-group day schedules from the published timetable
// document.
type Parser struct {
	logger *zap.Logger
}

// New builds a Parser.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// ParseDocument extracts every recognisable timetable from the document and
// returns group → date → schedule. Tables without a locatable date or header
// row are skipped; the rest of the document is still processed.
func (p *Parser) ParseDocument(doc *goquery.Document) map[string]map[string]*models.DaySchedule {
	result := make(map[string]map[string]*models.DaySchedule)

	doc.Find(timetableSelector).Each(func(i int, table *goquery.Selection) {
		date, isMonday, ok := findDate(table)
		if !ok {
			p.logger.Sugar().Debugw("table skipped, no date found", "table", i)
			return
		}
		p.parseTable(table, date, isMonday, result)
	})

	return result
}

func (p *Parser) parseTable(table *goquery.Selection, date string, isMonday bool, result map[string]map[string]*models.DaySchedule) {
	grid := BuildGrid(table)
	if grid.Empty() {
		return
	}

	headerRow, columns := findHeader(grid)
	if headerRow == -1 {
		p.logger.Sugar().Debugw("table skipped, no header row", "date", date)
		return
	}

	rowToPair := make(map[int]int)
	currentPair := 0

	for r := headerRow + 1; r <= grid.MaxRow(); r++ {
		pairText := ""
		if cell := grid.Cell(r, 0); cell != nil {
			pairText = strings.ToLower(strings.TrimSpace(cell.Text()))
		}
		if m := rePairNum.FindStringSubmatch(pairText); m != nil {
			currentPair, _ = strconv.Atoi(m[1])
		} else if strings.Contains(pairText, "классный") || strings.Contains(pairText, "разговоры") {
			currentPair = 0
		}
		rowToPair[r] = currentPair

		for _, col := range columns.order {
			group := columns.names[col]

			id, ok := grid.CellIndex(r, col)
			if !ok {
				continue
			}

			prevID, hasPrev := grid.CellIndex(r-1, col)
			isContinuation := r > headerRow+1 && hasPrev && prevID == id

			prevPair, hadPrevRow := rowToPair[r-1]
			samePairBlock := hadPrevRow && prevPair == currentPair

			if isContinuation {
				continue
			}

			cell := grid.Cell(r, col)
			if samePairBlock {
				p.mergeOrAddLesson(cell, group, date, isMonday, currentPair, result)
			} else {
				p.addLesson(cell, group, date, isMonday, currentPair, result)
			}
		}
	}
}

func (p *Parser) addLesson(cell *goquery.Selection, group, date string, isMonday bool, pair int, result map[string]map[string]*models.DaySchedule) {
	lines := extractLines(cell)
	if placeholderOnly(lines) {
		return
	}

	lesson := ClassifyLesson(lines)
	if lesson.Subject == "" && utf8.RuneCountInString(lesson.Raw) < 3 {
		return
	}

	period := getPeriod(result, group, date, isMonday, pair)
	period.Lessons = append(period.Lessons, lesson)
}

// mergeOrAddLesson handles a fresh cell whose row shares the pair number with
// the previous row: its lines are folded into the last lesson recorded for
// this period by re-classifying the combined raw lines, which keeps repeated
// merges idempotent. The heuristic can misfire on irregular span layouts; the
// behavior is intentionally kept as published.
func (p *Parser) mergeOrAddLesson(cell *goquery.Selection, group, date string, isMonday bool, pair int, result map[string]map[string]*models.DaySchedule) {
	newLines := extractLines(cell)
	if placeholderOnly(newLines) {
		return
	}

	period := getPeriod(result, group, date, isMonday, pair)
	if len(period.Lessons) == 0 {
		p.addLesson(cell, group, date, isMonday, pair, result)
		return
	}

	last := period.Lessons[len(period.Lessons)-1]
	var combined []string
	if last.Raw != "" {
		combined = append(combined, strings.Split(last.Raw, models.RawLineSeparator)...)
	}
	combined = append(combined, newLines...)

	period.Lessons[len(period.Lessons)-1] = ClassifyLesson(combined)
}

func getPeriod(result map[string]map[string]*models.DaySchedule, group, date string, isMonday bool, pair int) *models.Period {
	byDate, ok := result[group]
	if !ok {
		byDate = make(map[string]*models.DaySchedule)
		result[group] = byDate
	}
	day, ok := byDate[date]
	if !ok {
		day = models.NewDaySchedule(isMonday)
		byDate[date] = day
	}
	return day.Period(pair)
}

// headerColumns is the column → group-name mapping in ascending column order.
type headerColumns struct {
	order []int
	names map[int]string
}

// findHeader scans the first rows of the grid for group-name cells. Column 0
// is reserved for pair labels and never mapped.
func findHeader(grid *Grid) (int, headerColumns) {
	for r := 0; r <= grid.MaxRow() && r < headerScanRows; r++ {
		cols := headerColumns{names: make(map[int]string)}
		for c := 1; c <= grid.MaxCol(r); c++ {
			cell := grid.Cell(r, c)
			if cell == nil {
				continue
			}
			text := strings.TrimSpace(cell.Text())
			if reGroup.MatchString(text) || looksLikeGroup(text) {
				cols.names[c] = text
				cols.order = append(cols.order, c)
			}
		}
		if len(cols.order) > 0 {
			return r, cols
		}
	}
	return -1, headerColumns{}
}

// looksLikeGroup is the loose fallback for header cells that don't match the
// strict group pattern: short, dashed, and containing a digit.
func looksLikeGroup(text string) bool {
	if !strings.Contains(text, "-") || utf8.RuneCountInString(text) >= 15 {
		return false
	}
	return strings.ContainsAny(text, "0123456789")
}

// findDate walks up from the table through its ancestors, scanning preceding
// siblings closest-first for a date heading. The weekday flag is read from
// the same text block.
func findDate(table *goquery.Selection) (string, bool, bool) {
	if len(table.Nodes) == 0 {
		return "", false, false
	}

	curr := table.Nodes[0]
	for depth := 0; depth < dateScanDepth && curr != nil; depth++ {
		if curr.Type == html.ElementNode && strings.EqualFold(curr.Data, "body") {
			break
		}
		for prev := curr.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type != html.ElementNode {
				continue
			}
			text := strings.TrimSpace(reSpaces.ReplaceAllString(nodeText(prev), " "))
			if m := reDate.FindString(text); m != "" {
				return m, strings.Contains(strings.ToLower(text), "понедельник"), true
			}
		}
		curr = curr.Parent
	}
	return "", false, false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// extractLines splits a cell into text lines: one per paragraph sub-element
// when present, else the whole cell as a single line.
func extractLines(cell *goquery.Selection) []string {
	if cell == nil {
		return nil
	}

	var lines []string
	paragraphs := cell.Find("p")
	if paragraphs.Length() > 0 {
		paragraphs.Each(func(_ int, par *goquery.Selection) {
			if text := trimCell(par.Text()); text != "" {
				lines = append(lines, text)
			}
		})
		return lines
	}

	if text := trimCell(cell.Text()); text != "" {
		lines = append(lines, text)
	}
	return lines
}

// trimCell trims ordinary and non-breaking whitespace from both ends.
func trimCell(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ' '
	})
}

// placeholderOnly reports whether the cell carried no real content (empty or
// a lone non-breaking-space filler).
func placeholderOnly(lines []string) bool {
	if len(lines) == 0 {
		return true
	}
	if len(lines) == 1 {
		switch lines[0] {
		case "&nbsp;", " ":
			return true
		}
	}
	return false
}
