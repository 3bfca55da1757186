package models

// BellTimes is the start-time pair for one period. Either entry may be empty
// when the source page lacks the row.
type BellTimes struct {
	Normal string
	Monday string
}

// BellTable maps pair numbers to their bell times.
type BellTable map[int]BellTimes

// Empty reports whether the table carries no usable entries.
func (b BellTable) Empty() bool {
	return len(b) == 0
}

// Time returns the start time of a period for the given weekday variant.
func (b BellTable) Time(pair int, monday bool) string {
	t, ok := b[pair]
	if !ok {
		return ""
	}
	if monday {
		return t.Monday
	}
	return t.Normal
}
