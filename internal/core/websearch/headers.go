package websearch

import (
	"math/rand"

	"github.com/gocolly/colly"
)

// headerProfile is a coherent set of request headers for one desktop browser.
type headerProfile struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	SecFetchDest   string
	SecFetchMode   string
	SecFetchSite   string
}

const htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

var desktopProfiles = []headerProfile{
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:         htmlAccept,
		AcceptLanguage: "en-US,en;q=0.9",
		SecFetchDest:   "document",
		SecFetchMode:   "navigate",
		SecFetchSite:   "none",
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:         htmlAccept,
		AcceptLanguage: "en-US,en;q=0.9",
		SecFetchDest:   "document",
		SecFetchMode:   "navigate",
		SecFetchSite:   "none",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
		Accept:         htmlAccept,
		AcceptLanguage: "en-US,en;q=0.5",
		SecFetchDest:   "document",
		SecFetchMode:   "navigate",
		SecFetchSite:   "none",
	},
}

// pickProfile returns a random desktop profile. A configured user agent
// replaces the profile's own.
func pickProfile(userAgent string) headerProfile {
	p := desktopProfiles[rand.Intn(len(desktopProfiles))]
	if userAgent != "" {
		p.UserAgent = userAgent
	}
	return p
}

func (p headerProfile) apply(r *colly.Request) {
	r.Headers.Set("User-Agent", p.UserAgent)
	r.Headers.Set("Accept", p.Accept)
	r.Headers.Set("Accept-Language", p.AcceptLanguage)
	r.Headers.Set("Sec-Fetch-Dest", p.SecFetchDest)
	r.Headers.Set("Sec-Fetch-Mode", p.SecFetchMode)
	r.Headers.Set("Sec-Fetch-Site", p.SecFetchSite)
}
