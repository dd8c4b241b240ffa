package models

import (
	"fmt"
	"time"
)

// CityRecord is one entry of the city feed.
//
// Invariants expected by the aggregators (see Validate):
//   - City is non-empty
//   - Population is not negative; zero is representable but leaves every
//     percentage over it undefined
type CityRecord struct {
	City       string          `json:"city" yaml:"city"`
	State      string          `json:"state" yaml:"state"`
	Population int             `json:"population" yaml:"population"`
	Allergies  []AllergyRecord `json:"allergies" yaml:"allergies"`
}

// AllergyRecord is one allergy nested in a CityRecord. Developed holds one
// age per occurrence of the allergy; Outgrown one age per resolved
// occurrence. len(Outgrown) <= len(Developed) is expected, not enforced.
type AllergyRecord struct {
	Allergy   string    `json:"allergy" yaml:"allergy"`
	Type      string    `json:"type" yaml:"type"`
	Developed []float64 `json:"developed" yaml:"developed"`
	Outgrown  []float64 `json:"outgrown" yaml:"outgrown"`
}

// Snapshot is one consistent read of the three feeds.
type Snapshot struct {
	Population   int          `json:"population" yaml:"population"`
	Cities       []CityRecord `json:"cities" yaml:"cities"`
	AllergyNames []string     `json:"allergies" yaml:"allergies"`
	FetchedAt    time.Time    `json:"fetched_at" yaml:"fetched_at"`
}

// RecordError identifies a malformed feed record.
type RecordError struct {
	City    string
	Allergy string
	Reason  string
}

func (e *RecordError) Error() string {
	switch {
	case e.City == "":
		return fmt.Sprintf("malformed city record: %s", e.Reason)
	case e.Allergy == "":
		return fmt.Sprintf("malformed record for city %q: %s", e.City, e.Reason)
	default:
		return fmt.Sprintf("malformed record for city %q allergy %q: %s", e.City, e.Allergy, e.Reason)
	}
}

// Validate checks the fields the aggregators rely on.
func (c CityRecord) Validate() error {
	if c.City == "" {
		return &RecordError{Reason: "city name is required"}
	}
	if c.Population < 0 {
		return &RecordError{City: c.City, Reason: "population must not be negative"}
	}
	for i, a := range c.Allergies {
		if a.Allergy == "" {
			return &RecordError{City: c.City, Reason: fmt.Sprintf("allergy %d has no name", i)}
		}
		if a.Type == "" {
			return &RecordError{City: c.City, Allergy: a.Allergy, Reason: "type is required"}
		}
		if err := validateAges(a.Developed); err != nil {
			return &RecordError{City: c.City, Allergy: a.Allergy, Reason: "developed " + err.Error()}
		}
		if err := validateAges(a.Outgrown); err != nil {
			return &RecordError{City: c.City, Allergy: a.Allergy, Reason: "outgrown " + err.Error()}
		}
	}
	return nil
}

func validateAges(ages []float64) error {
	for _, age := range ages {
		if age < 0 {
			return fmt.Errorf("age %v is negative", age)
		}
	}
	return nil
}
