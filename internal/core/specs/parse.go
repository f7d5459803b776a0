package specs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	slugRe   = regexp.MustCompile(`/sailboat/([^/?#]+)`)
	numberRe = regexp.MustCompile(`-?\d*\.?\d+`)
)

// ParseSearchResults extracts candidates from a search results page. Rows
// without a model link or slug are skipped.
func ParseSearchResults(html string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	candidates := []Candidate{}
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		modelCell := cells.Eq(0)
		link := modelCell.Find("a").First()
		name := strings.TrimSpace(link.Text())
		if name == "" {
			name = strings.TrimSpace(modelCell.Text())
		}
		if name == "" {
			return
		}
		href, _ := link.Attr("href")
		m := slugRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		candidates = append(candidates, Candidate{
			ModelName:  name,
			Slug:       m[1],
			LOA:        optionalText(cells.Eq(1)),
			FirstBuilt: optionalText(cells.Eq(2)),
		})
	})
	return candidates, nil
}

// ParseDetail reads the label/value tables of a model detail page.
func ParseDetail(html string) (*Specs, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}
	find := func(labels ...string) *string {
		for _, l := range labels {
			if v := findValue(doc, l); v != nil {
				return v
			}
		}
		return nil
	}

	s := &Specs{
		HullType:            find("Hull Type"),
		Rigging:             find("Rigging"),
		Construction:        find("Construction"),
		Displacement:        parseNum(find("Displacement")),
		Ballast:             parseNum(find("Ballast")),
		LOA:                 parseNum(find("LOA")),
		LWL:                 parseNum(find("LWL")),
		Beam:                parseNum(find("Beam")),
		SailArea:            parseNum(find("Sail Area")),
		Engine:              find("Engine"),
		AuxPowerMake:        find("Make"),
		AuxPowerModel:       find("Model"),
		AuxPowerFuel:        find("Fuel"),
		Water:               parseNum(find("Water")),
		Designer:            find("Designer", "Design"),
		SADisplacement:      parseNum(find("SA/Disp")),
		BallastDisplacement: parseNum(find("Bal/Disp", "Ballast/Disp")),
		DisplacementLength:  parseNum(find("Disp/Len", "Disp/Length")),
		ComfortRatio:        parseNum(find("Comfort")),
		CapsizeScreening:    parseNum(find("Capsize")),
		FirstBuilt:          toInt(parseNum(find("First Built", "Year"))),
		LastBuilt:           toInt(parseNum(find("Last Built"))),
		NumberOfBoats:       toInt(parseNum(find("# Built", "Number Built"))),
	}

	// Draft may be a range such as "4.5 / 6.5".
	if draft := find("Draft"); draft != nil {
		parts := strings.Split(*draft, "/")
		s.DraftMin = parseNum(&parts[0])
		if len(parts) >= 2 {
			s.DraftMax = parseNum(&parts[1])
		} else {
			s.DraftMax = s.DraftMin
		}
	}
	return s, nil
}

// findValue looks for a cell whose text contains label and returns the text
// of the cell right after it, falling back to dt/dd pairs.
func findValue(doc *goquery.Document, label string) *string {
	want := strings.ToLower(label)
	var value *string

	doc.Find("td, th").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(strings.TrimSpace(cell.Text())), want) {
			return true
		}
		next := cell.NextFiltered("td")
		if next.Length() == 0 {
			return true
		}
		value = optionalText(next)
		return false
	})
	if value != nil {
		return value
	}

	doc.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(strings.TrimSpace(dt.Text())), want) {
			return true
		}
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return true
		}
		value = optionalText(dd)
		return false
	})
	return value
}

func optionalText(sel *goquery.Selection) *string {
	t := strings.TrimSpace(sel.Text())
	if t == "" {
		return nil
	}
	return &t
}

// parseNum reads the first number in v, ignoring thousands separators, so
// "12,500 lb / 5,670 kg" is 12500 and "4.5 ft" is 4.5.
func parseNum(v *string) *float64 {
	if v == nil {
		return nil
	}
	m := numberRe.FindString(strings.ReplaceAll(*v, ",", ""))
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &f
}

func toInt(f *float64) *int {
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}
