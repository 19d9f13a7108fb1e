package query

import (
	"time"

	"github.com/privileges-api/privileges/internal/model"
)

// PeriodAll removes the lower time bound.
const PeriodAll = "all"

// DefaultPeriod applies when a period is missing or unknown.
const DefaultPeriod = "7d"

// DefaultTimeframe applies when a timeframe is missing or unknown.
const DefaultTimeframe = "week"

const day = 24 * time.Hour

var analyticsPeriods = map[string]time.Duration{
	"1d":  day,
	"7d":  7 * day,
	"30d": 30 * day,
	"90d": 90 * day,
}

var exportPeriods = map[string]time.Duration{
	"7d":   7 * day,
	"14d":  14 * day,
	"30d":  30 * day,
	"90d":  90 * day,
	"180d": 180 * day,
}

// Window is a lower bound on event_timestamp. An empty Since means no bound.
type Window struct {
	Name  string
	Since string
}

// AnalyticsWindow resolves the period parameter of the analytics events
// endpoint.
func AnalyticsWindow(period string, now time.Time) Window {
	return periodWindow(analyticsPeriods, period, now)
}

// ExportWindow resolves the period parameter of the export endpoints.
func ExportWindow(period string, now time.Time) Window {
	return periodWindow(exportPeriods, period, now)
}

func periodWindow(periods map[string]time.Duration, period string, now time.Time) Window {
	if period == PeriodAll {
		return Window{Name: PeriodAll}
	}
	d, ok := periods[period]
	if !ok {
		period, d = DefaultPeriod, periods[DefaultPeriod]
	}
	return Window{Name: period, Since: model.FormatTime(now.Add(-d))}
}

// TimeframeWindow resolves the timeframe parameter of the analytics summary:
// day, week, month or year, defaulting to week.
func TimeframeWindow(timeframe string, now time.Time) Window {
	var since time.Time
	switch timeframe {
	case "day":
		since = now.Add(-day)
	case "month":
		since = now.AddDate(0, -1, 0)
	case "year":
		since = now.AddDate(-1, 0, 0)
	default:
		timeframe = DefaultTimeframe
		since = now.Add(-7 * day)
	}
	return Window{Name: timeframe, Since: model.FormatTime(since)}
}
