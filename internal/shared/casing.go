package shared

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UpperTR upper-cases s with Turkish rules (i -> İ, ı -> I) after trimming.
// cases.Caser is stateful, so a fresh one is built per call.
func UpperTR(s string) string {
	return cases.Upper(language.Turkish).String(strings.TrimSpace(s))
}

// LowerTR lower-cases s with Turkish rules (I -> ı, İ -> i).
func LowerTR(s string) string {
	return cases.Lower(language.Turkish).String(s)
}

// UpperTRPtr applies UpperTR to an optional value.
func UpperTRPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := UpperTR(*s)
	return &v
}
