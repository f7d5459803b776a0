package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSources_KeepsDefaultsForMissingFields(t *testing.T) {
	s, err := ParseSources([]byte(`
specs_site:
  base_url: https://specs.example.com/
review_qualifier: boat test
`))
	require.NoError(t, err)

	assert.Equal(t, "https://specs.example.com", s.SpecsSite.BaseURL)
	assert.Equal(t, 25, s.SpecsSite.ResultsPerPage)
	assert.Equal(t, "boat test", s.ReviewQualifier)
	assert.Equal(t, "owners forum", s.ForumQualifier)
	assert.Equal(t, DefaultSources().WebSearch.Endpoint, s.WebSearch.Endpoint)
}

func TestParseSources_NormalizesChallengeTitles(t *testing.T) {
	s, err := ParseSources([]byte(`challenge_titles: ["  Just A Moment ", "Access Denied"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"just a moment", "access denied"}, s.ChallengeTitles)
}

func TestParseSources_RejectsEmptyEndpoint(t *testing.T) {
	_, err := ParseSources([]byte(`web_search: {endpoint: ""}`))
	assert.Error(t, err)
}

func TestLoadSources_EmptyPathReturnsDefaults(t *testing.T) {
	s, err := LoadSources("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSources(), s)
}
