package scheduler

import (
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

// windowHours maps each named day-part to local start/end hours.
var windowHours = map[models.WindowName][2]int{
	models.WindowMorning:   {9, 12},
	models.WindowMidday:    {12, 14},
	models.WindowAfternoon: {14, 18},
	models.WindowEvening:   {18, 22},
	models.WindowAny:       {9, 22},
}

// WindowBounds returns the concrete local time range for a named window on
// the day containing ref. Unknown names fall back to "any".
func WindowBounds(name models.WindowName, ref time.Time, loc *time.Location) (start, end time.Time) {
	hours, ok := windowHours[name]
	if !ok {
		hours = windowHours[models.WindowAny]
	}
	local := ref.In(loc)
	y, m, d := local.Date()
	start = time.Date(y, m, d, hours[0], 0, 0, 0, loc)
	end = time.Date(y, m, d, hours[1], 0, 0, 0, loc)
	return start, end
}

// DayBounds returns the full local day [00:00, 24:00) containing ref.
func DayBounds(ref time.Time, loc *time.Location) (start, end time.Time) {
	local := ref.In(loc)
	y, m, d := local.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
