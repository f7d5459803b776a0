package markdown

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

var (
	imageRe       = regexp.MustCompile(`!\[[^\]]*\]\([^\)]+\)`)
	controlRe     = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	invisibleRune = strings.NewReplacer(
		"\u200B", "", // zero-width space
		"\u200C", "",
		"\u200D", "",
		"\u200E", "",
		"\u200F", "",
		"\uFEFF", "", // byte order mark
		"\uFFFD", "",
	)
)

// FromFragment renders an HTML fragment as compact markdown text: image-only
// lines and blank lines are dropped, invisible characters removed.
func FromFragment(html string) (string, error) {
	conv := md.NewConverter("", true, nil)
	out, err := conv.ConvertString(html)
	if err != nil {
		return "", err
	}
	return Clean(out), nil
}

// Clean strips markdown-level noise from converted text.
func Clean(mdText string) string {
	lines := strings.Split(mdText, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		line := strings.TrimSpace(l)
		if line == "" {
			continue
		}
		if imageRe.MatchString(line) && strings.TrimSpace(imageRe.ReplaceAllString(line, "")) == "" {
			continue
		}
		line = controlRe.ReplaceAllString(line, "")
		line = invisibleRune.Replace(line)
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
