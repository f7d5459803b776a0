package specs

// Candidate is one row of a specs-site search result, shown to a human who
// picks the matching model.
type Candidate struct {
	ModelName   string  `json:"model_name"`
	Slug        string  `json:"slug"`
	LOA         *string `json:"loa"`
	FirstBuilt  *string `json:"first_built"`
	Recommended bool    `json:"recommended"`
}

// Specs is the design data parsed from a model's detail page. Every field is
// optional; the site is inconsistent about which rows it shows.
type Specs struct {
	SourceURL           *string  `json:"source_url"`
	HullType            *string  `json:"hull_type"`
	Rigging             *string  `json:"rigging"`
	Construction        *string  `json:"construction"`
	Displacement        *float64 `json:"displacement"`
	Ballast             *float64 `json:"ballast"`
	LOA                 *float64 `json:"loa"`
	LWL                 *float64 `json:"lwl"`
	Beam                *float64 `json:"beam"`
	DraftMin            *float64 `json:"draft_min"`
	DraftMax            *float64 `json:"draft_max"`
	SailArea            *float64 `json:"sail_area"`
	SADisplacement      *float64 `json:"sa_displacement"`
	BallastDisplacement *float64 `json:"ballast_displacement"`
	DisplacementLength  *float64 `json:"displacement_length"`
	ComfortRatio        *float64 `json:"comfort_ratio"`
	CapsizeScreening    *float64 `json:"capsize_screening"`
	Engine              *string  `json:"engine"`
	AuxPowerMake        *string  `json:"aux_power_make"`
	AuxPowerModel       *string  `json:"aux_power_model"`
	AuxPowerFuel        *string  `json:"aux_power_fuel"`
	Water               *float64 `json:"water"`
	Designer            *string  `json:"designer"`
	FirstBuilt          *int     `json:"first_built"`
	LastBuilt           *int     `json:"last_built"`
	NumberOfBoats       *int     `json:"number_of_boats"`
}
