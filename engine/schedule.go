/*
schedule.go - Shift-type resolution and business-day anchoring

PURPOSE:
  Maps a submission timestamp to a shift-type bucket using the configured
  time windows, locates the processor's currently open shift, and anchors
  the 24-hour accounting window. Business days start at a configured
  reference hour rather than calendar midnight: a deposit at 02:00 with
  an 08:00 day-start hour belongs to the previous business day.

FALLBACK BEHAVIOR:
  A timestamp falling into a gap between configured windows resolves to
  the system-wide default shift type instead of failing the submission.
  The gap is logged; intake availability wins over configuration
  strictness.

SEE ALSO:
  - types.go: ShiftWindow.Contains (midnight wrapping)
  - hold.go: hold release anchored to DayStart
*/
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Resolution is the outcome of resolving a submission timestamp.
type Resolution struct {
	ShiftType   ShiftType
	ActiveShift *Shift // nil when the processor has no open shift
	DayStart    time.Time
}

// ShiftClock resolves timestamps against the configured shift schedule.
type ShiftClock struct {
	Ref ReferenceData
	Log *zap.Logger
}

// Resolve determines the shift type for now, the processor's active shift
// (if any), and the start of the current accounting day. Read-only.
func (c *ShiftClock) Resolve(ctx context.Context, store Store, now time.Time, p ProcessorID) (Resolution, error) {
	res := Resolution{
		ShiftType: c.shiftTypeAt(now),
		DayStart:  DayStart(now, c.Ref.DayStartHour()),
	}

	shift, err := store.ActiveShift(ctx, p)
	if err != nil {
		return Resolution{}, err
	}
	res.ActiveShift = shift
	return res, nil
}

func (c *ShiftClock) shiftTypeAt(now time.Time) ShiftType {
	hour := now.Hour()
	for _, w := range c.Ref.ShiftWindows() {
		if w.Contains(hour) {
			return w.Type
		}
	}
	fallback := c.Ref.DefaultShiftType()
	c.Log.Warn("no shift window matches timestamp, using default shift type",
		zap.Int("hour", hour),
		zap.String("default", string(fallback)))
	return fallback
}

// DayStart returns the start of the accounting day containing now, for a
// business day anchored at startHour o'clock.
func DayStart(now time.Time, startHour int) time.Time {
	start := time.Date(now.Year(), now.Month(), now.Day(), startHour, 0, 0, 0, now.Location())
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// MonthBounds returns the calendar month period [start, end) containing now.
func MonthBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}
