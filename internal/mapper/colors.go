package mapper

import (
	"fmt"
	"hash/fnv"
	"strings"
)

const (
	colorGreen = "#10b981"
	colorRed   = "#ef4444"
	colorBlue  = "#3b82f6"
)

// outcomeColors maps well-known outcome names to their conventional colors.
var outcomeColors = map[string]string{
	"YES":        colorGreen,
	"NO":         colorRed,
	"TRUE":       colorGreen,
	"FALSE":      colorRed,
	"WIN":        colorBlue,
	"LOSE":       colorRed,
	"OVER":       colorGreen,
	"UNDER":      colorRed,
	"BIDEN":      colorBlue,
	"TRUMP":      colorRed,
	"DEMOCRAT":   colorBlue,
	"REPUBLICAN": colorRed,
	"UP":         colorGreen,
	"DOWN":       colorRed,
	"HIGHER":     colorGreen,
	"LOWER":      colorRed,
	"MORE":       colorGreen,
	"LESS":       colorRed,
	"INCREASE":   colorGreen,
	"DECREASE":   colorRed,
}

// OutcomeColor assigns a display color to an outcome name. Recognized names
// use the fixed table (exact match first, then partial); anything else gets a
// hash-derived HSL hue so the same name always maps to the same color across
// renders and restarts.
func OutcomeColor(name string) string {
	upper := strings.ToUpper(name)

	if c, ok := outcomeColors[upper]; ok {
		return c
	}

	switch {
	case strings.Contains(upper, "YES"), strings.Contains(upper, "TRUE"), strings.Contains(upper, "WIN"):
		return colorGreen
	case strings.Contains(upper, "NO"), strings.Contains(upper, "FALSE"), strings.Contains(upper, "LOSE"):
		return colorRed
	}

	h := fnv.New32a()
	h.Write([]byte(name))
	hue := h.Sum32() % 360
	return fmt.Sprintf("hsl(%d, 70%%, 60%%)", hue)
}
