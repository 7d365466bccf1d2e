package customers

import (
	"regexp"
	"strconv"
	"strings"
)

// CodePrefix starts every customer code.
const CodePrefix = "MFT-"

// DefaultCodeStart is the first number handed out when no MFT-<n> code exists.
const DefaultCodeStart = 4000

var codePattern = regexp.MustCompile(`^MFT-(\d+)$`)

// NormalizeCode trims and upper-cases raw and adds the MFT- prefix when
// missing. Blank input stays blank.
func NormalizeCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return ""
	}
	if !strings.HasPrefix(code, CodePrefix) {
		code = CodePrefix + code
	}
	return code
}

// NextCode returns one more than the highest MFT-<n> among codes, or start
// when none match.
func NextCode(codes []string, start int) string {
	if start <= 0 {
		start = DefaultCodeStart
	}
	next := start
	for _, code := range codes {
		m := codePattern.FindStringSubmatch(code)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return CodePrefix + strconv.Itoa(next)
}
