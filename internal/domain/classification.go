package domain

import "strings"

// Category is the legal area a conversation is classified into.
type Category string

const (
	CategoryLaboral   Category = "Laboral"
	CategoryFamiliar  Category = "Familiar"
	CategoryPenal     Category = "Penal"
	CategoryCivil     Category = "Civil"
	CategoryComercial Category = "Comercial"
)

// Urgency levels reported by the classifier.
type Urgency string

const (
	UrgencyAlta  Urgency = "alta"
	UrgencyMedia Urgency = "media"
	UrgencyBaja  Urgency = "baja"
)

// PriceBand is the estimated consultation price range in COP.
type PriceBand struct {
	Min int
	Max int
}

var priceBands = map[Category]PriceBand{
	CategoryLaboral:   {Min: 80000, Max: 150000},
	CategoryFamiliar:  {Min: 80000, Max: 150000},
	CategoryPenal:     {Min: 120000, Max: 200000},
	CategoryCivil:     {Min: 80000, Max: 150000},
	CategoryComercial: {Min: 100000, Max: 180000},
}

// PriceBandFor returns the advertised price band for a category. Unknown
// categories get the Civil band.
func PriceBandFor(c Category) PriceBand {
	if band, ok := priceBands[c]; ok {
		return band
	}
	return priceBands[CategoryCivil]
}

// ParseCategory maps free-form classifier output onto a known category.
// Matching is case-insensitive; anything unrecognized becomes Civil.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "laboral":
		return CategoryLaboral
	case "familiar", "familia":
		return CategoryFamiliar
	case "penal":
		return CategoryPenal
	case "comercial":
		return CategoryComercial
	default:
		return CategoryCivil
	}
}

// ParseUrgency maps classifier output onto a known urgency, defaulting
// to media.
func ParseUrgency(s string) Urgency {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alta":
		return UrgencyAlta
	case "baja":
		return UrgencyBaja
	default:
		return UrgencyMedia
	}
}

// ClassificationResult is the structured outcome of the one-time case
// classification. It only lives long enough to compose the handoff
// message and deep link.
type ClassificationResult struct {
	Category     Category
	ShortSummary string
	FullSummary  string
	PriceMin     int
	PriceMax     int
	UserName     string
	Urgency      Urgency
}

// DefaultClassification is the fallback used when the classifier call
// fails or returns something unparseable.
func DefaultClassification() ClassificationResult {
	band := PriceBandFor(CategoryCivil)
	return ClassificationResult{
		Category:     CategoryCivil,
		ShortSummary: "Consulta legal general",
		FullSummary:  "Consulta legal general recibida por WhatsApp.",
		PriceMin:     band.Min,
		PriceMax:     band.Max,
		Urgency:      UrgencyMedia,
	}
}
