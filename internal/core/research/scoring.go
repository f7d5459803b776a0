package research

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"boatresearch/internal/core/specs"
)

const (
	feetPerMeter = 3.28084

	// SummaryLimit bounds the listing summary, in characters.
	SummaryLimit = 350
)

var leadingYearRe = regexp.MustCompile(`^\d{4}\s+`)

// ExtractSearchKeyword strips a leading model year from a listing name.
// It returns "" for an empty name.
func ExtractSearchKeyword(name string) string {
	return strings.TrimSpace(leadingYearRe.ReplaceAllString(name, ""))
}

// BuildFallbackKeyword is "<manufacturer> <length in feet>", or the bare
// manufacturer when the length is unknown (zero). It returns "" without a
// manufacturer.
func BuildFallbackKeyword(manufacturer string, lengthMeters float64) string {
	if manufacturer == "" {
		return ""
	}
	if lengthMeters == 0 {
		return manufacturer
	}
	return fmt.Sprintf("%s %d", manufacturer, int64(math.Floor(lengthMeters*feetPerMeter+0.5)))
}

// ScoreCandidate ranks a specs candidate against the search keyword and the
// listing's build year (0 when unknown).
func ScoreCandidate(c specs.Candidate, keyword string, buildYear int) float64 {
	var score float64
	kw := strings.ToUpper(keyword)
	name := strings.ToUpper(c.ModelName)

	switch {
	case kw == "":
	case name == kw:
		score += 100
	case strings.Contains(name, kw):
		score += 50
	default:
		words := strings.Fields(kw)
		matched := 0
		for _, w := range words {
			if strings.Contains(name, w) {
				matched++
			}
		}
		if len(words) > 0 {
			score += float64(matched) / float64(len(words)) * 30
		}
	}

	if buildYear != 0 && c.FirstBuilt != nil && *c.FirstBuilt != "" {
		if year, ok := leadingInt(*c.FirstBuilt); ok {
			diff := year - buildYear
			if diff < 0 {
				diff = -diff
			}
			score += math.Max(0, float64(20-diff))
		}
	}
	return score
}

// MarkRecommended flags the strictly highest scoring candidate; ties go to
// the earliest one.
func MarkRecommended(cands []specs.Candidate, keyword string, buildYear int) {
	if len(cands) == 0 {
		return
	}
	best, bestScore := 0, -1.0
	for i := range cands {
		if s := ScoreCandidate(cands[i], keyword, buildYear); s > bestScore {
			best, bestScore = i, s
		}
	}
	cands[best].Recommended = true
}

// leadingInt reads an optionally signed integer prefix after leading
// whitespace, so "1989 (est.)" is 1989.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// YearRange is the production span used to group listings into a model.
type YearRange struct {
	Min *int
	Max *int
}

// ComputeYearRange prefers the specs' production years, then the decade of
// the build year (0 when unknown), then nothing.
func ComputeYearRange(buildYear int, s *specs.Specs) YearRange {
	if s != nil && (nonZero(s.FirstBuilt) || nonZero(s.LastBuilt)) {
		first, last := s.FirstBuilt, s.LastBuilt
		if first == nil {
			first = last
		}
		if last == nil {
			last = s.FirstBuilt
		}
		return YearRange{Min: copyInt(first), Max: copyInt(last)}
	}
	if buildYear != 0 {
		start := floorDiv(buildYear, 10) * 10
		end := start + 9
		return YearRange{Min: &start, Max: &end}
	}
	return YearRange{}
}

func nonZero(p *int) bool { return p != nil && *p != 0 }

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ExtractDomain returns the host of rawURL without a leading "www.", or
// rawURL itself when it has no host.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// TruncateSummary cuts s to limit characters, trimming trailing space and
// appending an ellipsis when it had to cut.
func TruncateSummary(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimRightFunc(string(r[:limit]), unicode.IsSpace) + "…"
}
