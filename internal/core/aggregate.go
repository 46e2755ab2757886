package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TotalAmount sums the amounts of all expenses; zero for an empty list.
func TotalAmount(list []ExpenseWithCategory) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range list {
		sum = sum.Add(e.Expense.Amount)
	}
	return sum
}

// GroupByDay sums amounts per local calendar day in loc, most recent day first.
func GroupByDay(list []ExpenseWithCategory, loc *time.Location) DailyTotals {
	if loc == nil {
		loc = time.Local
	}
	sums := make(map[int64]decimal.Decimal)
	days := make(map[int64]time.Time)
	for _, e := range list {
		day := Midnight(e.Expense.Date.In(loc))
		key := day.Unix()
		sums[key] = sums[key].Add(e.Expense.Amount)
		days[key] = day
	}

	out := make(DailyTotals, 0, len(sums))
	for key, total := range sums {
		out = append(out, DayTotal{Day: days[key], Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.After(out[j].Day) })
	return out
}

// GroupByCategory sums amounts per category id. The result is sorted by
// category name, then id, so rendering it is deterministic.
func GroupByCategory(list []ExpenseWithCategory) CategoryTotals {
	sums := make(map[int64]decimal.Decimal)
	cats := make(map[int64]Category)
	for _, e := range list {
		id := e.Category.ID
		sums[id] = sums[id].Add(e.Expense.Amount)
		if _, ok := cats[id]; !ok {
			cats[id] = e.Category
		}
	}

	out := make(CategoryTotals, 0, len(sums))
	for id, total := range sums {
		out = append(out, CategoryTotal{Category: cats[id], Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category.Name != out[j].Category.Name {
			return out[i].Category.Name < out[j].Category.Name
		}
		return out[i].Category.ID < out[j].Category.ID
	})
	return out
}

// BarChart builds the daily spending chart from the maxBars most recent days,
// oldest bar first. Heights are percentages of the largest day.
func BarChart(daily DailyTotals, maxBars int) []Bar {
	if len(daily) == 0 || maxBars <= 0 {
		return nil
	}
	recent := daily
	if len(recent) > maxBars {
		recent = recent[:maxBars]
	}

	peak := decimal.Zero
	for _, d := range recent {
		if d.Total.GreaterThan(peak) {
			peak = d.Total
		}
	}
	if !peak.IsPositive() {
		peak = decimal.NewFromInt(1)
	}

	bars := make([]Bar, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		d := recent[i]
		pct := int(d.Total.Mul(decimal.NewFromInt(100)).Div(peak).Round(0).IntPart())
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		bars = append(bars, Bar{
			Day:     d.Day,
			Label:   d.Day.Format("Mon"),
			Total:   d.Total,
			Percent: pct,
		})
	}
	return bars
}

// Summarize runs the whole aggregation pipeline for one snapshot.
func Summarize(f DateFilter, list []ExpenseWithCategory, loc *time.Location) Summary {
	daily := GroupByDay(list, loc)
	return Summary{
		Filter:     f,
		Count:      len(list),
		Total:      TotalAmount(list),
		Daily:      daily,
		Categories: GroupByCategory(list),
		Chart:      BarChart(daily, DefaultLastDays),
	}
}
