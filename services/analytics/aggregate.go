package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
)

// HoursInDay is the number of hourly buckets in a daily series
const HoursInDay = 24

// HourBucket is one hour of a daily call count series
type HourBucket struct {
	Hour  int    `json:"hour"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DowntimeBucket is one hour of a daily downtime series
type DowntimeBucket struct {
	Hour            int     `json:"hour"`
	Label           string  `json:"label"`
	DowntimeMinutes float64 `json:"downtime_minutes"`
	Percentage      float64 `json:"percentage"`
}

// MachineReport is the downtime rollup for one machine over a period
type MachineReport struct {
	MachineID            uuid.UUID `json:"machine_id"`
	MachineName          string    `json:"machine_name"`
	MachineCode          string    `json:"machine_code"`
	LocationName         string    `json:"location_name"`
	TotalCalls           int       `json:"total_calls"`
	TotalDowntimeMinutes float64   `json:"total_downtime_minutes"`
	DowntimePercentage   float64   `json:"downtime_percentage"`
}

// LocationReport is the downtime rollup for all machines of a location
type LocationReport struct {
	LocationID           uuid.UUID `json:"location_id"`
	LocationName         string    `json:"location_name"`
	MachineCount         int       `json:"machine_count"`
	TotalCalls           int       `json:"total_calls"`
	TotalDowntimeMinutes float64   `json:"total_downtime_minutes"`
	DowntimePercentage   float64   `json:"downtime_percentage"`
}

// HourLabel renders an hour as "HH:00"
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// HourlyCallCounts buckets the calls created on day's calendar day by local
// creation hour. Hours follow day's location.
func HourlyCallCounts(calls []*models.Call, day time.Time) []HourBucket {
	buckets := make([]HourBucket, HoursInDay)
	for h := range buckets {
		buckets[h] = HourBucket{Hour: h, Label: HourLabel(h)}
	}

	start, end := models.DayWindow(day)
	for _, c := range calls {
		if !within(c.CreatedAt, start, end) {
			continue
		}
		buckets[c.CreatedAt.In(day.Location()).Hour()].Count++
	}
	return buckets
}

// MTTRMinutes is the mean of resolvedAt minus respondedAt over resolved calls
// that carry both, in whole minutes. Zero when no call qualifies.
func MTTRMinutes(calls []*models.Call) int {
	var total time.Duration
	n := 0
	for _, c := range calls {
		if c.Status != models.CallStatusResolved {
			continue
		}
		d, ok := c.ResponseDuration()
		if !ok {
			continue
		}
		total += d
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(total.Minutes() / float64(n)))
}

// MTBFHours is the assumed operating time of all machines over the window
// divided by the number of calls raised in it. Zero when there were no calls.
func MTBFHours(hoursPerDay float64, days, machineCount, totalCalls int) int {
	if totalCalls <= 0 {
		return 0
	}
	operating := hoursPerDay * float64(days) * float64(machineCount)
	return int(math.Round(operating / float64(totalCalls)))
}

// HourlyDowntime sums creation-to-resolution time of the resolved calls
// created on day's calendar day, bucketed by creation hour. The percentage is
// relative to every machine being available for the whole hour.
func HourlyDowntime(calls []*models.Call, machineCount int, day time.Time) []DowntimeBucket {
	minutes := make([]float64, HoursInDay)
	start, end := models.DayWindow(day)
	for _, c := range calls {
		if !within(c.CreatedAt, start, end) {
			continue
		}
		d, ok := c.Downtime()
		if !ok {
			continue
		}
		minutes[c.CreatedAt.In(day.Location()).Hour()] += d.Minutes()
	}

	buckets := make([]DowntimeBucket, HoursInDay)
	for h := range buckets {
		buckets[h] = DowntimeBucket{
			Hour:            h,
			Label:           HourLabel(h),
			DowntimeMinutes: round1(minutes[h]),
			Percentage:      percentage(minutes[h], float64(machineCount)*60),
		}
	}
	return buckets
}

// CapacityMinutes is the assumed production time of one machine over a period
func CapacityMinutes(period models.Period, hoursPerDay float64) float64 {
	return hoursPerDay * float64(period.Days()) * 60
}

// MachineReports rolls up resolved calls per machine. Every machine gets a row,
// including ones without calls. The percentage is not capped at 100.
func MachineReports(machines []*models.Machine, calls []*models.Call, period models.Period, hoursPerDay float64) []MachineReport {
	totals := downtimeByMachine(calls)
	capacity := CapacityMinutes(period, hoursPerDay)

	reports := make([]MachineReport, 0, len(machines))
	for _, m := range machines {
		t := totals[m.ID]
		reports = append(reports, MachineReport{
			MachineID:            m.ID,
			MachineName:          m.Name,
			MachineCode:          m.Code,
			LocationName:         m.LocationName,
			TotalCalls:           t.calls,
			TotalDowntimeMinutes: round1(t.minutes),
			DowntimePercentage:   percentage(t.minutes, capacity),
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].DowntimePercentage != reports[j].DowntimePercentage {
			return reports[i].DowntimePercentage > reports[j].DowntimePercentage
		}
		return reports[i].MachineName < reports[j].MachineName
	})
	return reports
}

// LocationReports rolls up resolved calls per location. Capacity scales with
// the number of machines at the location.
func LocationReports(locations []*models.Location, machines []*models.Machine, calls []*models.Call, period models.Period, hoursPerDay float64) []LocationReport {
	totals := downtimeByMachine(calls)
	capacity := CapacityMinutes(period, hoursPerDay)

	index := make(map[uuid.UUID]int, len(locations))
	reports := make([]LocationReport, 0, len(locations))
	for _, l := range locations {
		index[l.ID] = len(reports)
		reports = append(reports, LocationReport{LocationID: l.ID, LocationName: l.Name})
	}

	minutes := make([]float64, len(reports))
	for _, m := range machines {
		i, ok := index[m.LocationID]
		if !ok {
			continue
		}
		t := totals[m.ID]
		reports[i].MachineCount++
		reports[i].TotalCalls += t.calls
		minutes[i] += t.minutes
	}

	for i := range reports {
		reports[i].TotalDowntimeMinutes = round1(minutes[i])
		reports[i].DowntimePercentage = percentage(minutes[i], capacity*float64(reports[i].MachineCount))
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].DowntimePercentage != reports[j].DowntimePercentage {
			return reports[i].DowntimePercentage > reports[j].DowntimePercentage
		}
		return reports[i].LocationName < reports[j].LocationName
	})
	return reports
}

// PeriodWindow returns the [from, now] window of a reporting period
func PeriodWindow(period models.Period, now time.Time) (time.Time, time.Time) {
	return period.Window(now)
}

type machineTotal struct {
	calls   int
	minutes float64
}

func downtimeByMachine(calls []*models.Call) map[uuid.UUID]machineTotal {
	totals := make(map[uuid.UUID]machineTotal)
	for _, c := range calls {
		d, ok := c.Downtime()
		if !ok {
			continue
		}
		t := totals[c.MachineID]
		t.calls++
		t.minutes += d.Minutes()
		totals[c.MachineID] = t
	}
	return totals
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func percentage(minutes, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	return round1(minutes / capacity * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
