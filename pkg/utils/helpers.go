package utils

import (
	"strconv"
	"strings"
)

// ParseDecimal parses a decimal number written with either '.' or ',' as
// the decimal separator, as spreadsheets in pt-BR locales export them.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

// ParseOptionalInt parses s, treating a blank value as zero
func ParseOptionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// ParseOptionalBool parses s, treating a blank value as false
func ParseOptionalBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
