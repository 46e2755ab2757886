package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayTotal is the summed amount of one local calendar day.
type DayTotal struct {
	Day   time.Time // local midnight
	Total decimal.Decimal
}

// CategoryTotal is the summed amount of one category.
type CategoryTotal struct {
	Category Category
	Total    decimal.Decimal
}

// DailyTotals is ordered most recent day first.
type DailyTotals []DayTotal

// CategoryTotals carries no meaningful order; aggregation sorts it by name.
type CategoryTotals []CategoryTotal

// Sum returns the sum of all day totals.
func (d DailyTotals) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range d {
		sum = sum.Add(t.Total)
	}
	return sum
}

// Sum returns the sum of all category totals.
func (c CategoryTotals) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range c {
		sum = sum.Add(t.Total)
	}
	return sum
}

// Bar is one column of the daily spending chart.
type Bar struct {
	Day     time.Time
	Label   string // short weekday, e.g. "Mon"
	Total   decimal.Decimal
	Percent int // height relative to the largest bar, 0-100
}

// Summary bundles everything the report screen shows for one filter.
type Summary struct {
	Filter     DateFilter
	Count      int
	Total      decimal.Decimal
	Daily      DailyTotals
	Categories CategoryTotals
	Chart      []Bar
}
