// Package widgets holds the view models behind the dashboard's small
// presentational pieces and exposes them to html/template.
package widgets

import (
	"fmt"
	"html/template"
	"math"
)

// Direction of a metric compared to its previous period
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// TrendIndicator describes how a metric moved between two periods
type TrendIndicator struct {
	Direction Direction `json:"direction"`
	Percent   float64   `json:"percent"`
}

// Label renders the indicator as shown next to a stat, e.g. "+12.5%"
func (t TrendIndicator) Label() string {
	switch t.Direction {
	case Up:
		return fmt.Sprintf("+%.1f%%", t.Percent)
	case Down:
		return fmt.Sprintf("-%.1f%%", t.Percent)
	default:
		return "0.0%"
	}
}

// Trend compares current with previous. Percent is always non-negative and
// rounded to one decimal. Growth from zero counts as 100%.
func Trend(current, previous float64) TrendIndicator {
	if current == previous {
		return TrendIndicator{Direction: Flat}
	}

	var pct float64
	if previous == 0 {
		pct = 100
	} else {
		pct = math.Abs((current - previous) / previous * 100)
	}
	pct = math.Round(pct*10) / 10

	if current > previous {
		return TrendIndicator{Direction: Up, Percent: pct}
	}
	return TrendIndicator{Direction: Down, Percent: pct}
}

// LoadingSpinner is the view model for the loading indicator
type LoadingSpinner struct {
	Size  string
	Class string
	Label string
}

var spinnerClasses = map[string]string{
	"sm": "spinner spinner-sm",
	"md": "spinner spinner-md",
	"lg": "spinner spinner-lg",
}

// Spinner returns a spinner of the given size; unknown sizes render as md
func Spinner(size string) LoadingSpinner {
	class, ok := spinnerClasses[size]
	if !ok {
		size, class = "md", spinnerClasses["md"]
	}
	return LoadingSpinner{Size: size, Class: class, Label: "Loading"}
}

// FuncMap exposes the widgets to templates
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"trend":   Trend,
		"spinner": Spinner,
	}
}
