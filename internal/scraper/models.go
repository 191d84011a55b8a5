package scraper

// Card is the normalized output of a detail-page parse. Optional fields
// are pointers so the store can distinguish absent from zero; Skills is
// embedded in the raw JSON payload but persisted as child rows.
type Card struct {
	CardID       int64   `json:"card_id"`
	Name         string  `json:"name"`
	EvolveMarker *string `json:"evolve_marker"`
	CardType     string  `json:"card_type"` // pokemon | trainer | energy | unknown

	HP          *int64  `json:"hp"`
	ElementCode *string `json:"element_code"`
	Element     *string `json:"element"`

	RegulationMark     *string `json:"regulation_mark"`
	CollectorNumber    *string `json:"collector_number"`
	ExpansionCode      *string `json:"expansion_code"`
	ExpansionName      *string `json:"expansion_name"`
	ExpansionSymbolURL *string `json:"expansion_symbol_url"`
	Illustrator        *string `json:"illustrator"`
	ImageURL           *string `json:"image_url"`

	WeaknessCode    *string `json:"weakness_code"`
	WeaknessValue   *string `json:"weakness_value"`
	ResistanceCode  *string `json:"resistance_code"`
	ResistanceValue *string `json:"resistance_value"`
	RetreatCost     *int64  `json:"retreat_cost"`

	PokedexNo   *int64   `json:"pokedex_no"`
	HeightM     *float64 `json:"height_m"`
	WeightKg    *float64 `json:"weight_kg"`
	Description *string  `json:"description"`

	SourceURL string  `json:"source_url"`
	FetchedAt string  `json:"fetched_at"`
	Skills    []Skill `json:"skills"`
}

// Skill is one ordered effect owned by a card: an ability, an attack, or
// a trainer/energy effect, distinguished by Kind. Idx is dense 0-based in
// document order across all skill sections.
type Skill struct {
	Idx    int      `json:"idx"`
	Kind   *string  `json:"kind"`
	Name   *string  `json:"name"`
	Cost   []string `json:"cost"`
	Damage *string  `json:"damage"`
	Effect *string  `json:"effect"`

	// Derived and downstream fields; excluded from the raw payload.
	EffectTextNorm *string  `json:"-"`
	Instructions   []string `json:"-"`
}

// SearchParams are the upstream search form fields. CardType and
// Regulation use the site's own tokens: "all", "1", "2", "3".
type SearchParams struct {
	Keyword    string
	CardType   string
	Regulation string
}
