package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sources describes the external sites the research pipeline talks to.
type Sources struct {
	SpecsSite       SpecsSite `yaml:"specs_site"`
	WebSearch       WebSearch `yaml:"web_search"`
	ReviewQualifier string    `yaml:"review_qualifier"`
	ForumQualifier  string    `yaml:"forum_qualifier"`
	ChallengeTitles []string  `yaml:"challenge_titles"`
}

type SpecsSite struct {
	BaseURL        string `yaml:"base_url"`
	ResultsPerPage int    `yaml:"results_per_page"`
}

type WebSearch struct {
	Endpoint  string `yaml:"endpoint"`
	UserAgent string `yaml:"user_agent"`
}

func DefaultSources() Sources {
	return Sources{
		SpecsSite: SpecsSite{
			BaseURL:        "https://sailboatdata.com",
			ResultsPerPage: 25,
		},
		WebSearch: WebSearch{
			Endpoint:  "https://html.duckduckgo.com/html/",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		},
		ReviewQualifier: "sailboat review",
		ForumQualifier:  "owners forum",
		ChallengeTitles: []string{"just a moment", "attention required", "challenge"},
	}
}

// LoadSources reads a YAML source profile. Fields missing from the file keep
// their defaults; an empty path returns the defaults.
func LoadSources(path string) (Sources, error) {
	s := DefaultSources()
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Sources{}, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(b)
}

func ParseSources(b []byte) (Sources, error) {
	s := DefaultSources()
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Sources{}, fmt.Errorf("parse sources file: %w", err)
	}
	s.SpecsSite.BaseURL = strings.TrimRight(s.SpecsSite.BaseURL, "/")
	if s.SpecsSite.BaseURL == "" {
		return Sources{}, fmt.Errorf("specs_site.base_url is required")
	}
	if s.WebSearch.Endpoint == "" {
		return Sources{}, fmt.Errorf("web_search.endpoint is required")
	}
	for i, t := range s.ChallengeTitles {
		s.ChallengeTitles[i] = strings.ToLower(strings.TrimSpace(t))
	}
	return s, nil
}
