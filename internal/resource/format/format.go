// Package format renders numbers, money and dates the way the Indonesian
// dashboard displays them. Search matching relies on the same renderings.
package format

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Indonesian)

var longMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

var shortMonths = [...]string{
	"Jan", "Feb", "Mar", "Apr", "Mei", "Jun",
	"Jul", "Agu", "Sep", "Okt", "Nov", "Des",
}

// Number renders v rounded to an integer with Indonesian digit grouping ("15.000").
func Number(v float64) string {
	return printer.Sprintf("%d", int64(math.Round(v)))
}

// Currency renders an IDR amount without fractional digits ("Rp 15.000").
func Currency(amount float64) string {
	if amount < 0 {
		return "-Rp " + Number(-amount)
	}
	return "Rp " + Number(amount)
}

// Plain renders v the way JavaScript stringifies numbers: no grouping and
// no trailing zeros ("12.5", "3").
func Plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Weight renders a weight in kilograms ("12.5 kg").
func Weight(kg float64) string {
	return Plain(kg) + " kg"
}

// LongDate renders t as "15 Januari 2024". Zero times render as "".
func LongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s %d", t.Day(), longMonths[t.Month()-1], t.Year())
}

// DateTime renders t as "15 Jan 2024, 14.30". Zero times render as "-".
func DateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%d %s %d, %02d.%02d", t.Day(), shortMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// Relative renders how long ago t happened relative to now, in hours up to a
// day and in whole days beyond that.
func Relative(t, now time.Time) string {
	hours := int(math.Round(now.Sub(t).Hours()))
	if hours <= 24 {
		return fmt.Sprintf("%d jam yang lalu", hours)
	}
	return fmt.Sprintf("%d hari yang lalu", hours/24)
}
