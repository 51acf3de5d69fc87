package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"vod-automation/constant"
)

var ErrStreamNotEnded = errors.New("stream has no end time, cannot be scheduled")

type SlotType string

const (
	SlotTypePrime    SlotType = "prime"
	SlotTypeGood     SlotType = "good"
	SlotTypeStandard SlotType = "standard"
)

// ScheduleSlot is one candidate publish instant. Priority 1 is best.
type ScheduleSlot struct {
	Time        time.Time
	Priority    int
	SlotType    SlotType
	Reason      string
	ContentType constant.ContentType
}

type window struct {
	startHour int
	endHour   int
}

// Publish windows by content type. Shorts follow commute/lunch/evening
// engagement peaks; full VODs target low-competition and prime-time blocks.
var (
	shortsWindows = []window{
		{7, 9},
		{12, 14},
		{17, 20},
		{21, 23},
	}
	vodWindows = []window{
		{2, 6},
		{14, 16},
		{20, 22},
	}
)

// Day-of-week preference, 1 = best.
var dayPriorities = map[constant.ContentType]map[time.Weekday]int{
	constant.ContentTypeShort: {
		time.Monday:    3,
		time.Tuesday:   2,
		time.Wednesday: 2,
		time.Thursday:  1,
		time.Friday:    1,
		time.Saturday:  3,
		time.Sunday:    4,
	},
	constant.ContentTypeVod: {
		time.Monday:    2,
		time.Tuesday:   1,
		time.Wednesday: 1,
		time.Thursday:  1,
		time.Friday:    2,
		time.Saturday:  3,
		time.Sunday:    3,
	},
}

const (
	vodPublishHour    = 3
	lateEndHour       = 23
	maxShortsPerDay   = 4
	fallbackShortHour = 19
)

// Scheduler computes publish instants in one fixed reference timezone.
// Timezone-naive inputs are assumed to already be in that zone.
type Scheduler struct {
	loc *time.Location
	now func() time.Time
}

func NewScheduler(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", timezone, err)
	}
	return &Scheduler{
		loc: loc,
		now: time.Now,
	}, nil
}

// VodSlot returns the publish instant for a full VOD: 03:00 the day after
// the stream ended, one further day out when the stream ran past 23:00, and
// never before the current time.
func (s *Scheduler) VodSlot(endedAt time.Time) (time.Time, error) {
	if endedAt.IsZero() {
		return time.Time{}, ErrStreamNotEnded
	}

	local := endedAt.In(s.loc)
	slot := time.Date(local.Year(), local.Month(), local.Day()+1, vodPublishHour, 0, 0, 0, s.loc)
	if local.Hour() >= lateEndHour {
		slot = slot.AddDate(0, 0, 1)
	}
	return s.ensureFuture(slot), nil
}

// ShortsSlots distributes count shorts across consecutive days starting at
// base, at most four per day, best windows first within each day. The
// returned list is indexed by clip and each slot is never before now.
func (s *Scheduler) ShortsSlots(base time.Time, count int) []ScheduleSlot {
	if count <= 0 {
		return []ScheduleSlot{}
	}

	local := base.In(s.loc)
	slots := make([]ScheduleSlot, 0, count)

	for i := 0; i < count; i++ {
		daysOffset := i / maxShortsPerDay
		day := local.AddDate(0, 0, daysOffset)
		slotIndex := i % maxShortsPerDay

		daySlots := s.daySlots(day, constant.ContentTypeShort)
		if slotIndex < len(daySlots) {
			slot := daySlots[slotIndex]
			slot.Time = s.ensureFuture(slot.Time)
			slots = append(slots, slot)
			continue
		}

		fallback := time.Date(day.Year(), day.Month(), day.Day(), fallbackShortHour, 0, 0, 0, s.loc)
		slots = append(slots, ScheduleSlot{
			Time:        s.ensureFuture(fallback),
			Priority:    4,
			SlotType:    SlotTypeStandard,
			Reason:      "Fallback time slot",
			ContentType: constant.ContentTypeShort,
		})
	}
	return slots
}

// daySlots returns the candidate slots for one day, best first.
func (s *Scheduler) daySlots(day time.Time, contentType constant.ContentType) []ScheduleSlot {
	dayPriority := dayPriorities[contentType][day.Weekday()]

	windows := shortsWindows
	if contentType == constant.ContentTypeVod {
		windows = vodWindows
	}

	var priority int
	var slotType SlotType
	switch {
	case dayPriority <= 2:
		priority, slotType = 1, SlotTypePrime
	case dayPriority == 3:
		priority, slotType = 2, SlotTypeGood
	default:
		priority, slotType = 3, SlotTypeStandard
	}

	slots := make([]ScheduleSlot, 0, len(windows))
	for _, w := range windows {
		midHour := (w.startHour + w.endHour) / 2
		slotTime := time.Date(day.Year(), day.Month(), day.Day(), midHour, 30, 0, 0, s.loc)
		slots = append(slots, ScheduleSlot{
			Time:        slotTime,
			Priority:    priority,
			SlotType:    slotType,
			Reason:      fmt.Sprintf("%s time on %s", titleCase(string(slotType)), day.Weekday()),
			ContentType: contentType,
		})
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Priority < slots[j].Priority
	})
	return slots
}

// ensureFuture pushes a slot forward by whole days until it is after the
// current time, so a computed schedule is never in the past.
func (s *Scheduler) ensureFuture(t time.Time) time.Time {
	now := s.now()
	for !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func titleCase(v string) string {
	if v == "" {
		return v
	}
	return string(v[0]-'a'+'A') + v[1:]
}
