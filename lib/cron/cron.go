// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed cadence. Use Parse to create one.
type Schedule struct {
	// interval is non-zero for @every schedules; the bitsets are
	// unused in that case.
	interval time.Duration

	seconds     bitset64
	minutes     bitset64
	hours       bitset64
	daysOfMonth bitset64
	months      bitset64
	daysOfWeek  bitset64
}

// bitset64 uses a uint64 as a compact set of integers 0-63.
type bitset64 uint64

func (b bitset64) has(value int) bool { return b&(1<<uint(value)) != 0 }
func (b *bitset64) set(value int)     { *b |= 1 << uint(value) }

var descriptors = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
}

// fieldBounds lists the inclusive range of each field in six-field
// order.
var fieldBounds = [6]struct {
	name     string
	min, max int
}{
	{"second", 0, 59},
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// Parse parses a cadence expression.
func Parse(expression string) (Schedule, error) {
	expression = strings.TrimSpace(expression)

	if rest, ok := strings.CutPrefix(expression, "@every "); ok {
		interval, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return Schedule{}, fmt.Errorf("cron: invalid @every interval: %w", err)
		}
		if interval < time.Second {
			return Schedule{}, fmt.Errorf("cron: @every interval must be at least 1s, got %s", interval)
		}
		return Schedule{interval: interval}, nil
	}
	if expanded, ok := descriptors[expression]; ok {
		expression = expanded
	} else if strings.HasPrefix(expression, "@") {
		return Schedule{}, fmt.Errorf("cron: unknown descriptor %q", expression)
	}

	fields := strings.Fields(expression)
	switch len(fields) {
	case 5:
		fields = append([]string{"0"}, fields...)
	case 6:
	default:
		return Schedule{}, fmt.Errorf("cron: expected 5 or 6 fields, got %d", len(fields))
	}

	var sets [6]bitset64
	for index, field := range fields {
		bounds := fieldBounds[index]
		bits, err := parseField(field, bounds.min, bounds.max)
		if err != nil {
			return Schedule{}, fmt.Errorf("cron: %s field: %w", bounds.name, err)
		}
		sets[index] = bits
	}

	return Schedule{
		seconds:     sets[0],
		minutes:     sets[1],
		hours:       sets[2],
		daysOfMonth: sets[3],
		months:      sets[4],
		daysOfWeek:  sets[5],
	}, nil
}

// Next returns the earliest time strictly after t that matches the
// schedule. An @every schedule returns t plus its interval.
//
// Field schedules that cannot match within 4 years of t (for example
// Feb 31) return an error.
func (s Schedule) Next(t time.Time) (time.Time, error) {
	if s.interval > 0 {
		return t.Add(s.interval), nil
	}

	t = t.UTC().Truncate(time.Second).Add(time.Second)
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		if !s.months.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
			continue
		}
		// Wildcard fields have every bit set, so requiring both
		// day constraints behaves like AND with the wildcard.
		if !s.daysOfMonth.has(t.Day()) || !s.daysOfWeek.has(int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
			continue
		}
		if !s.hours.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, time.UTC)
			continue
		}
		if !s.minutes.has(t.Minute()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()+1, 0, 0, time.UTC)
			continue
		}
		if !s.seconds.has(t.Second()) {
			t = t.Add(time.Second)
			continue
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("cron: no matching time within 4 years of %s", t.Format(time.RFC3339))
}

// parseField parses a comma-separated list of terms into a bitset.
func parseField(field string, minimum, maximum int) (bitset64, error) {
	var result bitset64
	for _, term := range strings.Split(field, ",") {
		bits, err := parseTerm(term, minimum, maximum)
		if err != nil {
			return 0, err
		}
		result |= bits
	}
	if result == 0 {
		return 0, fmt.Errorf("field %q produces empty set", field)
	}
	return result, nil
}

// parseTerm parses one of *, */N, V, V-V, V-V/N.
func parseTerm(term string, minimum, maximum int) (bitset64, error) {
	rangeExpression, stepText, hasStep := strings.Cut(term, "/")
	step := 1
	if hasStep {
		parsed, err := strconv.Atoi(stepText)
		if err != nil {
			return 0, fmt.Errorf("invalid step %q: %w", stepText, err)
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("step must be positive, got %d", parsed)
		}
		step = parsed
	}

	rangeStart, rangeEnd := minimum, maximum
	if rangeExpression != "*" {
		startText, endText, isRange := strings.Cut(rangeExpression, "-")
		start, err := strconv.Atoi(startText)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q: %w", startText, err)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(endText)
			if err != nil {
				return 0, fmt.Errorf("invalid range end %q: %w", endText, err)
			}
			if start > end {
				return 0, fmt.Errorf("range start %d > end %d", start, end)
			}
		}
		rangeStart, rangeEnd = start, end
	}

	if rangeStart < minimum || rangeEnd > maximum {
		return 0, fmt.Errorf("value out of range [%d-%d]: got %d-%d", minimum, maximum, rangeStart, rangeEnd)
	}

	var result bitset64
	for value := rangeStart; value <= rangeEnd; value += step {
		result.set(value)
	}
	return result, nil
}
