package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"collegebot/internal/models"
)

// Classification patterns, applied per line in a fixed order (see
// ClassifyLesson). Teacher names follow the "Фамилия И. О." convention; group
// names look like "1-ИП-2".
var (
	reDate          = regexp.MustCompile(`(\d{1,2})\s+[а-яА-Я]+\s+\d{4}|(\d{2}\.\d{2}\.\d{4})`)
	reGroup         = regexp.MustCompile(`^\d-[\wа-яА-Я]+-\d`)
	reTeacherFull   = regexp.MustCompile(`^[А-ЯЁ][а-яёА-ЯЁ-]+\s+[А-ЯЁ]\.\s*[А-ЯЁ]\.?$`)
	reTeacherSearch = regexp.MustCompile(`[А-ЯЁ][а-яёА-ЯЁ-]+\s+[А-ЯЁ]\.\s*[А-ЯЁ]\.?`)
	reTimeRange     = regexp.MustCompile(`(?i)[сc]\s*(\d{1,2}[:.]\d{2})`)
	reStartTime     = regexp.MustCompile(`(?i)начало\s+в\s+(\d{1,2}[:.]\d{2})`)
	reLabelFull     = regexp.MustCompile(`^\([^)]+\)$`)
	reLabelInline   = regexp.MustCompile(`\([^)]+\)`)
	reRoom          = regexp.MustCompile(`[Аа]уд\.?\s*(.*)`)
	rePairNum       = regexp.MustCompile(`(\d)\s*пара`)
	reRolesClean    = regexp.MustCompile(`(?i)(?:Зам\.?|Пред\.?|Чл\.?|Секр\.?|Преп\.?)[\wа-яА-Я-]*|\s+|[,.;]`)
	reDigits        = regexp.MustCompile(`\d+`)
	reSpaces        = regexp.MustCompile(`\s+`)
	reTrailComma    = regexp.MustCompile(`,+$`)
)

// ClassifyLesson turns the text lines of one timetable cell into a Lesson.
// Lines are consumed by the first rule that claims them: full-line label,
// inline labels, explicit start time, room list (optionally preceded by a
// teacher), full-line teacher name, embedded teacher names, and finally
// subject text. Unresolvable remainders fall back to subject text; the
// classifier never fails.
func ClassifyLesson(rawLines []string) models.Lesson {
	lesson := models.Lesson{Raw: strings.Join(rawLines, models.RawLineSeparator)}

	var subjectParts, teachers, labels []string
	var rooms []int
	customTime := ""

	for _, line := range rawLines {
		text := strings.TrimSpace(reSpaces.ReplaceAllString(line, " "))
		if text == "" {
			continue
		}

		if reLabelFull.MatchString(text) {
			labels = append(labels, text)
			continue
		}

		if inline := reLabelInline.FindAllString(text, -1); len(inline) > 0 {
			labels = append(labels, inline...)
			text = strings.TrimSpace(reLabelInline.ReplaceAllString(text, ""))
		}

		var timeFound, timeMatch string
		if m := reStartTime.FindStringSubmatch(text); m != nil {
			timeFound, timeMatch = m[1], m[0]
		} else if m := reTimeRange.FindStringSubmatch(text); m != nil {
			timeFound, timeMatch = m[1], m[0]
		}
		if timeFound != "" {
			customTime = strings.ReplaceAll(timeFound, ".", ":")
			// A near-bare timestamp line carries nothing else worth keeping.
			if utf8.RuneCountInString(text) < 15 {
				continue
			}
			text = strings.TrimSpace(strings.Replace(text, timeMatch, "", 1))
		}

		if strings.Contains(strings.ToLower(text), "ауд") {
			if loc := reRoom.FindStringSubmatchIndex(text); loc != nil {
				content := text[loc[2]:loc[3]]
				for _, digits := range reDigits.FindAllString(content, -1) {
					if n, err := strconv.Atoi(digits); err == nil {
						rooms = append(rooms, n)
					}
				}
				if loc[0] > 0 {
					preRoom := strings.TrimSpace(text[:loc[0]])
					if reTeacherFull.MatchString(preRoom) {
						teachers = append(teachers, reTrailComma.ReplaceAllString(preRoom, ""))
					}
				}
				continue
			}
		}

		if reTeacherFull.MatchString(text) {
			teachers = append(teachers, reTrailComma.ReplaceAllString(text, ""))
			continue
		}

		if found := reTeacherSearch.FindAllString(text, -1); len(found) > 0 {
			teachers = append(teachers, found...)
			remaining := text
			for _, t := range found {
				remaining = strings.Replace(remaining, t, "", 1)
			}
			remaining = strings.TrimSpace(reRolesClean.ReplaceAllString(remaining, ""))
			if utf8.RuneCountInString(remaining) < 3 {
				continue
			}
			text = remaining
		}

		if len(subjectParts) > 0 && utf8.RuneCountInString(text) < 3 {
			continue
		}
		subjectParts = append(subjectParts, text)
	}

	lesson.Subject = strings.Join(subjectParts, " ")
	lesson.Teachers = dedupeStrings(teachers)
	lesson.Rooms = dedupeInts(rooms)
	lesson.Labels = dedupeStrings(labels)
	lesson.StartTime = customTime
	return lesson
}

// IsTeacherName reports whether the whole string is a "Фамилия И. О." style
// teacher name.
func IsTeacherName(s string) bool {
	return reTeacherFull.MatchString(strings.TrimSpace(s))
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func dedupeInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, n := range in {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
