// Package daypart segments a venue's operating hours into 2-4 labeled,
// time-bounded parts with per-part energy targets.
package daypart

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Daypart is one computed time-bounded segment.
type Daypart struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	TimeRange string `json:"timeRange"`
	Icon      string `json:"icon"`
	Energy    int    `json:"energy"`
}

var clockTokenRe = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::?(\d{2}))?\s*(am|pm)?\s*$`)

// parseClock parses one clock token in HH, HH:MM, or HHMM form with an
// optional am/pm suffix, returning minutes-since-midnight.
func parseClock(tok string) (int, bool) {
	m := clockTokenRe.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	hh, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	mm := 0
	if m[2] != "" {
		mm, _ = strconv.Atoi(m[2])
	} else if len(m[1]) == 3 || len(m[1]) == 4 {
		// HHMM packed into one token, e.g. "1830"
		s := m[1]
		hh, _ = strconv.Atoi(s[:len(s)-2])
		mm, _ = strconv.Atoi(s[len(s)-2:])
	}
	suffix := strings.ToLower(m[3])
	switch suffix {
	case "pm":
		if hh < 12 {
			hh += 12
		}
	case "am":
		if hh == 12 {
			hh = 0
		}
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

var splitRe = regexp.MustCompile(`(?i)\s*(?:-|to)\s*`)

// parseHours parses "HH:MM-HH:MM"-style free text into open/close minutes.
// If close<=open the interval wraps past midnight.
func parseHours(hours string) (open, total int, ok bool) {
	hours = strings.TrimSpace(hours)
	if hours == "" {
		return 0, 0, false
	}
	parts := splitRe.Split(hours, 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	o, ok1 := parseClock(parts[0])
	c, ok2 := parseClock(parts[1])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	t := c - o
	if t <= 0 {
		t = 1440 - o + c
	}
	return o, t, true
}

func segmentCount(total int) int {
	switch {
	case total <= 6*60:
		return 2
	case total <= 12*60:
		return 3
	default:
		return 4
	}
}

var labelsByCount = map[int][]string{
	2: {"Opening", "Peak"},
	3: {"Opening", "Peak Hours", "Wind Down"},
	4: {"Opening", "Build Up", "Peak Hours", "Wind Down"},
}

var energyOffsetsByCount = map[int][]int{
	2: {-1, 1},
	3: {-2, 0, 1},
	4: {-2, -1, 1, 0},
}

func clampEnergy(e int) int {
	if e < 1 {
		return 1
	}
	if e > 10 {
		return 10
	}
	return e
}

func iconForHour(hour int) string {
	switch {
	case hour >= 5 && hour <= 10:
		return "sunrise"
	case hour >= 11 && hour <= 15:
		return "sun"
	case hour >= 16 && hour <= 18:
		return "sunset"
	case hour >= 19 && hour <= 23:
		return "moon"
	default:
		return "stars"
	}
}

func fmtRange(startMin, endMin int) string {
	return fmt.Sprintf("%02d:%02d–%02d:%02d", (startMin/60)%24, startMin%60, (endMin/60)%24, endMin%60)
}

func slug(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

// Generate builds the ordered daypart list for the given hours text and base
// energy. Ordering is significant downstream: it drives narration and email
// presentation order.
func Generate(hoursText string, baseEnergy int) []Daypart {
	open, total, ok := parseHours(hoursText)
	if !ok {
		return fallbackDayparts(baseEnergy)
	}

	n := segmentCount(total)
	labels := labelsByCount[n]
	offsets := energyOffsetsByCount[n]
	segLen := total / n

	out := make([]Daypart, 0, n)
	for i := 0; i < n; i++ {
		start := (open + i*segLen) % 1440
		end := start + segLen
		if i == n-1 {
			// last segment absorbs rounding remainder
			end = open + total
		}
		label := fmt.Sprintf("%s %s", labels[i], fmtRange(start, end))
		energy := clampEnergy(baseEnergy + offsets[i])
		out = append(out, Daypart{
			Key:       slug(labels[i]),
			Label:     label,
			TimeRange: fmt.Sprintf("%02d:%02d-%02d:%02d", (start/60)%24, start%60, (end/60)%24, end%60),
			Icon:      iconForHour((start / 60) % 24),
			Energy:    energy,
		})
	}
	return out
}

// fallbackDayparts is returned when hours text is empty or unparseable,
// applying the same 3-segment energy offsets Generate uses for a 6-12h day.
func fallbackDayparts(baseEnergy int) []Daypart {
	offsets := []int{-2, 0, 1}
	labels := []string{"Morning", "Afternoon", "Evening"}
	icons := []string{"sunrise", "sun", "moon"}
	ranges := []string{"06:00-12:00", "12:00-18:00", "18:00-23:00"}
	out := make([]Daypart, 0, 3)
	for i, label := range labels {
		out = append(out, Daypart{
			Key:       slug(label),
			Label:     fmt.Sprintf("%s %s", label, strings.ReplaceAll(ranges[i], "-", "–")),
			TimeRange: ranges[i],
			Icon:      icons[i],
			Energy:    clampEnergy(baseEnergy + offsets[i]),
		})
	}
	return out
}
