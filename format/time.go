// time.go - Formatierung von Zeitpunkten fuer die CLI
//
// Diese Datei enthaelt:
// - HumanDuration: "2 hours" statt "2h13m4s"
// - HumanTime: relative Angabe wie "5 minutes ago"
package format

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// HumanDuration formatiert eine Dauer in der groessten passenden Einheit
func HumanDuration(d time.Duration) string {
	seconds := int(d.Seconds())

	switch {
	case seconds < 1:
		return "Less than a second"
	case seconds == 1:
		return "1 second"
	case seconds < 60:
		return fmt.Sprintf("%d seconds", seconds)
	}

	minutes := int(d.Minutes())
	if minutes == 1 {
		return "About a minute"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}

	hours := int(math.Round(d.Hours()))
	switch {
	case hours == 1:
		return "About an hour"
	case hours < 48:
		return fmt.Sprintf("%d hours", hours)
	case hours < 24*7*2:
		return fmt.Sprintf("%d days", hours/24)
	case hours < 24*30*2:
		return fmt.Sprintf("%d weeks", hours/24/7)
	case hours < 24*365*2:
		return fmt.Sprintf("%d months", hours/24/30)
	}
	return fmt.Sprintf("%d years", int(d.Hours())/24/365)
}

// HumanTime formatiert einen Zeitpunkt relativ zu jetzt; fuer den
// Null-Zeitpunkt wird zero zurueckgegeben
func HumanTime(t time.Time, zero string) string {
	if t.IsZero() {
		return zero
	}

	delta := time.Since(t)
	if delta < 0 {
		return strings.ToLower(HumanDuration(-delta)) + " from now"
	}
	return strings.ToLower(HumanDuration(delta)) + " ago"
}
