package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// windowPrefix marks roster columns that are attendance windows.
const windowPrefix = "attendance_"

// stampLayout encodes the open instant down to the second; a millisecond
// suffix is appended separately. Only alphanumerics and underscores appear so
// the id is always a legal column name.
const stampLayout = "20060102_150405"

// WindowID names one attendance window. It doubles as the roster column name.
type WindowID string

// NewWindowID encodes t into a window id with millisecond resolution.
func NewWindowID(t time.Time) WindowID {
	t = t.UTC()
	return WindowID(fmt.Sprintf("%s%s_%03d", windowPrefix, t.Format(stampLayout), t.Nanosecond()/1e6))
}

// IsWindowColumn reports whether a column name follows the window convention.
func IsWindowColumn(name string) bool {
	return strings.HasPrefix(name, windowPrefix)
}

// OpenedAt parses the open instant back out of the id. Malformed ids yield
// the zero instant (Unix epoch ordering) rather than an error, so a garbled
// column name can never crash resolution or outrank a well-formed one.
func (w WindowID) OpenedAt() time.Time {
	s := strings.TrimPrefix(string(w), windowPrefix)
	if t, off, ok := parseStamp(s); ok {
		return t.Add(off)
	}
	return time.Unix(0, 0).UTC()
}

func parseStamp(s string) (time.Time, time.Duration, bool) {
	if len(s) != len(stampLayout)+4 || s[len(stampLayout)] != '_' {
		return time.Time{}, 0, false
	}
	t, err := time.Parse(stampLayout, s[:len(stampLayout)])
	if err != nil {
		return time.Time{}, 0, false
	}
	ms, err := strconv.Atoi(s[len(stampLayout)+1:])
	if err != nil || ms < 0 || ms > 999 {
		return time.Time{}, 0, false
	}
	return t, time.Duration(ms) * time.Millisecond, true
}

// windowClock issues strictly increasing window ids. Two opens inside the
// same millisecond get consecutive millisecond stamps instead of colliding
// on the same column name.
type windowClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64 // unix millis of the last issued id
}

func newWindowClock(now func() time.Time) *windowClock {
	if now == nil {
		now = time.Now
	}
	return &windowClock{now: now}
}

func (c *windowClock) next() WindowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UTC().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return NewWindowID(time.UnixMilli(ms).UTC())
}

// currentWindow picks the window column with the latest open instant.
// Malformed window-like names parse to the epoch and lose to any well-formed
// candidate; ties break on the raw name so selection is deterministic.
func currentWindow(columns []string) (WindowID, bool) {
	var (
		best   WindowID
		bestAt time.Time
		found  bool
	)
	for _, col := range columns {
		if !IsWindowColumn(col) {
			continue
		}
		w := WindowID(col)
		at := w.OpenedAt()
		if !found || at.After(bestAt) || (at.Equal(bestAt) && col > string(best)) {
			best, bestAt, found = w, at, true
		}
	}
	return best, found
}
