package browser

import (
	"errors"
	"strings"
)

var (
	// ErrFetchFailed means no usable page was obtained: the browser did not
	// launch or navigation failed. Callers must not cache a negative result.
	ErrFetchFailed = errors.New("page fetch failed")
	// ErrBotChallenge means the page loaded but is an anti-bot interstitial.
	ErrBotChallenge = errors.New("bot challenge page")
)

// IsFetchFailure reports whether err is one of the soft fetch failures.
func IsFetchFailure(err error) bool {
	return errors.Is(err, ErrFetchFailed) || errors.Is(err, ErrBotChallenge)
}

var defaultChallengeTitles = []string{"just a moment", "attention required", "challenge"}

// ChallengeDetector matches page titles against known interstitial phrases.
type ChallengeDetector struct {
	phrases []string
}

func NewChallengeDetector(phrases []string) ChallengeDetector {
	if len(phrases) == 0 {
		phrases = defaultChallengeTitles
	}
	lower := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lower = append(lower, p)
		}
	}
	return ChallengeDetector{phrases: lower}
}

func (d ChallengeDetector) IsChallenge(title string) bool {
	t := strings.ToLower(title)
	for _, p := range d.phrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
