package specs

import (
	"context"
	"testing"

	"boatresearch/internal/core/browser"
	"boatresearch/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<html><body>
<table>
<thead><tr><th>Model</th><th>LOA</th><th>First Built</th></tr></thead>
<tbody>
<tr><td><a href="/sailboat/catalina-42/">Catalina 42</a></td><td>41.83</td><td>1989</td></tr>
<tr><td><a href="/sailboat/catalina-400/">Catalina 400</a></td><td>40.5</td><td></td></tr>
<tr><td><a href="/builder/catalina/">Catalina Yachts</a></td><td></td><td></td></tr>
<tr><td>Too short</td><td>x</td></tr>
</tbody>
</table>
</body></html>`

const detailPage = `<html><body>
<table>
<tr><td>Hull Type:</td><td>Fin w/spade rudder</td></tr>
<tr><td>Rigging Type:</td><td>Masthead Sloop</td></tr>
<tr><td>LOA:</td><td>41.83 ft / 12.75 m</td></tr>
<tr><td>Displacement:</td><td>20,500 lb / 9,299 kg</td></tr>
<tr><td>Draft (max/min):</td><td>6.83 / 5.00 ft</td></tr>
<tr><td>Designer:</td><td>Gerry Douglas</td></tr>
<tr><td>Empty:</td><td>  </td></tr>
</table>
<dl>
<dt>First Built:</dt><dd>1989</dd>
<dt>Last Built:</dt><dd>2006</dd>
<dt># Built:</dt><dd>1,000</dd>
</dl>
</body></html>`

func TestParseSearchResults(t *testing.T) {
	got, err := ParseSearchResults(searchPage)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Catalina 42", got[0].ModelName)
	assert.Equal(t, "catalina-42", got[0].Slug)
	require.NotNil(t, got[0].LOA)
	assert.Equal(t, "41.83", *got[0].LOA)
	require.NotNil(t, got[0].FirstBuilt)
	assert.Equal(t, "1989", *got[0].FirstBuilt)

	assert.Equal(t, "catalina-400", got[1].Slug)
	assert.Nil(t, got[1].FirstBuilt)
}

func TestParseSearchResults_NoTableIsEmptyNotNil(t *testing.T) {
	got, err := ParseSearchResults(`<html><body><p>No sailboats found</p></body></html>`)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseDetail(t *testing.T) {
	s, err := ParseDetail(detailPage)
	require.NoError(t, err)

	require.NotNil(t, s.HullType)
	assert.Equal(t, "Fin w/spade rudder", *s.HullType)
	require.NotNil(t, s.Rigging)
	assert.Equal(t, "Masthead Sloop", *s.Rigging)
	require.NotNil(t, s.LOA)
	assert.InDelta(t, 41.83, *s.LOA, 1e-9)
	require.NotNil(t, s.Displacement)
	assert.InDelta(t, 20500, *s.Displacement, 1e-9)
	require.NotNil(t, s.DraftMin)
	require.NotNil(t, s.DraftMax)
	assert.InDelta(t, 6.83, *s.DraftMin, 1e-9)
	assert.InDelta(t, 5.0, *s.DraftMax, 1e-9)
	require.NotNil(t, s.Designer)
	assert.Equal(t, "Gerry Douglas", *s.Designer)

	require.NotNil(t, s.FirstBuilt)
	assert.Equal(t, 1989, *s.FirstBuilt)
	require.NotNil(t, s.LastBuilt)
	assert.Equal(t, 2006, *s.LastBuilt)
	require.NotNil(t, s.NumberOfBoats)
	assert.Equal(t, 1000, *s.NumberOfBoats)

	assert.Nil(t, s.Ballast)
	assert.Nil(t, s.Water)
}

func TestParseNum(t *testing.T) {
	str := func(s string) *string { return &s }
	cases := map[string]*float64{}
	one := 12500.0
	half := 4.5
	neg := -3.0
	cases["12,500 lbs"] = &one
	cases["4.5 ft"] = &half
	cases["-3"] = &neg
	cases["n/a"] = nil
	cases[""] = nil

	for in, want := range cases {
		got := parseNum(str(in))
		if want == nil {
			assert.Nil(t, got, in)
			continue
		}
		require.NotNil(t, got, in)
		assert.InDelta(t, *want, *got, 1e-9, in)
	}
	assert.Nil(t, parseNum(nil))
}

type stubFetcher struct {
	pages map[string]string
	err   error
	urls  []string
}

func (f *stubFetcher) Fetch(_ context.Context, u string) (string, error) {
	f.urls = append(f.urls, u)
	if f.err != nil {
		return "", f.err
	}
	return f.pages[u], nil
}

func TestClient_SearchAndDetail(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{}}
	c := &Client{log: logger.Nop("SpecsClient"), fetcher: f, baseURL: "https://specs.test", perPage: 25}
	f.pages[c.SearchURL("Catalina 42")] = searchPage
	f.pages[c.DetailURL("catalina-42")] = detailPage

	got, err := c.Search(context.Background(), "Catalina 42")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, f.urls[0], "keyword=Catalina+42")

	s, err := c.FetchDetail(context.Background(), "catalina-42")
	require.NoError(t, err)
	require.NotNil(t, s.SourceURL)
	assert.Equal(t, "https://specs.test/sailboat/catalina-42", *s.SourceURL)
}

func TestClient_FetchFailurePropagates(t *testing.T) {
	f := &stubFetcher{err: browser.ErrBotChallenge}
	c := &Client{log: logger.Nop("SpecsClient"), fetcher: f, baseURL: "https://specs.test", perPage: 25}

	got, err := c.Search(context.Background(), "Catalina 42")
	assert.Nil(t, got)
	assert.True(t, browser.IsFetchFailure(err))
}
