// Package view derives the filtered list and the per-category and per-date
// totals that the front end displays. Snapshots are always recomputed from
// the full record set.
package view

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"vet/internal/core"
)

// FilterAll is the selector value that shows every record.
const FilterAll = "All"

// CategoryTotal is the sum of a normalized category bucket.
type CategoryTotal struct {
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
}

// DateTotal is the sum of a single calendar date.
type DateTotal struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// Snapshot is everything the front end renders for one filter selection.
type Snapshot struct {
	// Filter is the effective selection, FilterAll when the requested one
	// no longer matches any record.
	Filter string `json:"filter"`
	// Status is the human-readable filter line.
	Status string `json:"status"`
	// Categories are the selector options: FilterAll, observed names in
	// order, and Uncategorized last when present.
	Categories []string        `json:"categories"`
	Visible    []core.Expense  `json:"visible"`
	ByCategory []CategoryTotal `json:"byCategory"`
	ByDate     []DateTotal     `json:"byDate"`
	Total      decimal.Decimal `json:"total"`
}

// Compute builds a snapshot of records under filter. It does not modify
// records. Totals are taken over the visible subset.
func Compute(records []core.Expense, filter string) Snapshot {
	categories := CategoryOptions(records)

	filter = strings.TrimSpace(filter)
	if filter == "" || !contains(categories, filter) {
		filter = FilterAll
	}

	visible := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if filter == FilterAll || e.NormalizedCategory() == filter {
			visible = append(visible, e.Clone())
		}
	}
	sortNewestFirst(visible)

	byCategory := map[string]decimal.Decimal{}
	byDate := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, e := range visible {
		amount := decimal.NewFromFloat(e.Amount)
		cat := e.NormalizedCategory()
		byCategory[cat] = byCategory[cat].Add(amount)
		byDate[e.Date] = byDate[e.Date].Add(amount)
		total = total.Add(amount)
	}

	return Snapshot{
		Filter:     filter,
		Status:     StatusLine(filter),
		Categories: categories,
		Visible:    visible,
		ByCategory: categoryTotals(byCategory),
		ByDate:     dateTotals(byDate),
		Total:      total,
	}
}

// CategoryOptions lists the selector candidates for records.
func CategoryOptions(records []core.Expense) []string {
	seen := map[string]bool{}
	var names []string
	uncategorized := false
	for _, e := range records {
		c := e.NormalizedCategory()
		if c == core.Uncategorized {
			uncategorized = true
			continue
		}
		if !seen[c] {
			seen[c] = true
			names = append(names, c)
		}
	}
	sort.Strings(names)

	out := make([]string, 0, len(names)+2)
	out = append(out, FilterAll)
	out = append(out, names...)
	if uncategorized {
		out = append(out, core.Uncategorized)
	}
	return out
}

// StatusLine describes the active filter.
func StatusLine(filter string) string {
	if filter == "" || filter == FilterAll {
		return "Showing all categories"
	}
	return "Showing " + filter
}

func sortNewestFirst(records []core.Expense) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := records[i].CreatedTime(), records[j].CreatedTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return records[i].ID > records[j].ID
	})
}

func categoryTotals(m map[string]decimal.Decimal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(m))
	for name, total := range m {
		out = append(out, CategoryTotal{Name: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func dateTotals(m map[string]decimal.Decimal) []DateTotal {
	out := make([]DateTotal, 0, len(m))
	for date, total := range m {
		out = append(out, DateTotal{Date: date, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
