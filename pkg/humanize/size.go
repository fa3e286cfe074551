package humanize

import "fmt"

func Size(i int64) (float64, string) {
	switch {
	case i < 1024:
		return float64(i), "B"
	case i < 1024*1024:
		return float64(i) / 1024, "KB"
	case i < 1024*1024*1024:
		return float64(i) / (1024 * 1024), "MB"
	default:
		return float64(i) / (1024 * 1024 * 1024), "GB"
	}
}

// SizeString renders i the way summaries expect, eg "12.34MB".
func SizeString(i int64) string {
	sz, unit := Size(i)
	if unit == "B" {
		return fmt.Sprintf("%dB", i)
	}

	return fmt.Sprintf("%.2f%s", sz, unit)
}

// Pluralize returns singular when count is 1, singular+"s" otherwise.
func Pluralize(count int, singular string) string {
	if count == 1 {
		return singular
	}

	return singular + "s"
}
