package stats

// PopulationStats is the population report: every city's share of the total
// patient population plus min/max/mean over city populations.
type PopulationStats struct {
	Cities []PopulationCity  `json:"cities" yaml:"cities"`
	Min    PopulationExtreme `json:"min" yaml:"min"`
	Max    PopulationExtreme `json:"max" yaml:"max"`
	Mean   float64           `json:"mean" yaml:"mean"`
}

type PopulationCity struct {
	City       string `json:"city" yaml:"city"`
	State      string `json:"state" yaml:"state"`
	Percentage Ratio  `json:"percentage" yaml:"percentage"`
	Population int    `json:"population" yaml:"population"`
}

type PopulationExtreme struct {
	City       string `json:"city" yaml:"city"`
	Percentage Ratio  `json:"percentage" yaml:"percentage"`
	Population int    `json:"population" yaml:"population"`
}

// AllergyStats is the allergy report: a summary per city and global
// statistics for the four grouping dimensions.
type AllergyStats struct {
	Cities []CitySummary `json:"cities" yaml:"cities"`
	Stats  GlobalStats   `json:"stats" yaml:"stats"`
}

type GlobalStats struct {
	Total     StatBlock     `json:"total" yaml:"total"`
	Type      []TypeStat    `json:"type" yaml:"type"`
	Developed []AllergyStat `json:"developed" yaml:"developed"`
	Outgrown  []AllergyStat `json:"outgrown" yaml:"outgrown"`
}

// CitySummary is the per-city result of the inner pass.
type CitySummary struct {
	City      string        `json:"city" yaml:"city"`
	State     string        `json:"state" yaml:"state"`
	Total     Count         `json:"total" yaml:"total"`
	Type      []TypeCount   `json:"type" yaml:"type"`
	Allergies []CityAllergy `json:"allergies" yaml:"allergies"`

	// byAllergy maps an allergy name to its first entry in Allergies.
	byAllergy map[string]int
}

// Count is a raw count and its share of a denominator.
type Count struct {
	Total      int   `json:"total" yaml:"total"`
	Percentage Ratio `json:"percentage" yaml:"percentage"`
}

type TypeCount struct {
	Type       string `json:"type" yaml:"type"`
	Total      int    `json:"total" yaml:"total"`
	Percentage Ratio  `json:"percentage" yaml:"percentage"`
}

type CityAllergy struct {
	Allergy   string     `json:"allergy" yaml:"allergy"`
	Type      string     `json:"type" yaml:"type"`
	Outgrown  Occurrence `json:"outgrown" yaml:"outgrown"`
	Developed Occurrence `json:"developed" yaml:"developed"`
}

// Occurrence counts recorded ages. Developed percentages are over the city
// population; outgrown percentages are over the allergy's developed count.
type Occurrence struct {
	Total      int       `json:"total" yaml:"total"`
	Percentage Ratio     `json:"percentage" yaml:"percentage"`
	Ages       []float64 `json:"ages" yaml:"ages"`
}

// StatBlock is the recurring min/max/mean summary. Min and max carry the
// city they were observed in; count and percentage are tracked independently
// and may name different cities.
type StatBlock struct {
	Min  Minimum `json:"min" yaml:"min"`
	Max  Maximum `json:"max" yaml:"max"`
	Mean Mean    `json:"mean" yaml:"mean"`
}

// Minimum.Percentage is nil when no contributing city had a defined percentage.
type Minimum struct {
	Total      *MinCount `json:"total" yaml:"total"`
	Percentage *MinRatio `json:"percentage" yaml:"percentage"`
}

type Maximum struct {
	Total      *MaxCount `json:"total" yaml:"total"`
	Percentage *MaxRatio `json:"percentage" yaml:"percentage"`
}

type MinCount struct {
	City string `json:"city" yaml:"city"`
	Min  int    `json:"min" yaml:"min"`
}

type MinRatio struct {
	City string `json:"city" yaml:"city"`
	Min  Ratio  `json:"min" yaml:"min"`
}

type MaxCount struct {
	City string `json:"city" yaml:"city"`
	Max  int    `json:"max" yaml:"max"`
}

type MaxRatio struct {
	City string `json:"city" yaml:"city"`
	Max  Ratio  `json:"max" yaml:"max"`
}

type Mean struct {
	Total      Ratio `json:"total" yaml:"total"`
	Percentage Ratio `json:"percentage" yaml:"percentage"`
}

type TypeStat struct {
	Type      string `json:"type" yaml:"type"`
	StatBlock `yaml:",inline"`
}

type AllergyStat struct {
	Allergy   string `json:"allergy" yaml:"allergy"`
	StatBlock `yaml:",inline"`
}
