package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	rangeWord = regexp.MustCompile(`(?i)\bto\b`)
	priceRun  = regexp.MustCompile(`[0-9][0-9.,]*`)
)

// ParsePrice reads the first amount in a price label. "." is a thousands
// separator and the first "," the decimal mark, so "1.234,50 €" is 1234.50.
// Ranges such as "100 to 150" yield their lower bound.
func ParsePrice(text string) (float64, bool) {
	text = rangeWord.ReplaceAllString(text, "-")
	run := priceRun.FindString(text)
	run = strings.TrimRight(run, ".,")
	if run == "" {
		return 0, false
	}
	run = strings.ReplaceAll(run, ".", "")
	run = strings.Replace(run, ",", ".", 1)
	v, err := strconv.ParseFloat(run, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
