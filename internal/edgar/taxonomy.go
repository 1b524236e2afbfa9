package edgar

import (
	_ "embed"

	"gopkg.in/yaml.v3"

	"github.com/sells-group/screener-cli/internal/model"
)

//go:embed taxonomy.yaml
var taxonomyYAML []byte

// Taxonomy maps named facts to ordered tag alias lists, composite addends,
// and multi-year series definitions.
type Taxonomy struct {
	Facts      map[string][]string  `yaml:"facts"`
	Composites map[string]Composite `yaml:"composites"`
	Series     map[string]SeriesDef `yaml:"series"`
}

// Composite lists extra tags whose resolved values are added onto a base fact.
type Composite struct {
	Add []string `yaml:"add"`
}

// SeriesDef names a tag tracked across fiscal years.
type SeriesDef struct {
	Tag   string `yaml:"tag"`
	Years int    `yaml:"years"`
}

var defaultTaxonomy = mustParseTaxonomy(taxonomyYAML)

func mustParseTaxonomy(raw []byte) Taxonomy {
	var t Taxonomy
	if err := yaml.Unmarshal(raw, &t); err != nil {
		panic("edgar: embedded taxonomy: " + err.Error())
	}
	return t
}

// DefaultTaxonomy returns the embedded fact taxonomy.
func DefaultTaxonomy() Taxonomy { return defaultTaxonomy }

// BuildBundle extracts every taxonomy fact from a snapshot into a bundle
// ready for formula evaluation.
//
// Composite facts sum independently extracted addends. A missing addend
// contributes 0 as long as at least one addend resolved; the composite is
// absent only when all addends are absent. Propagating absence instead
// would misreport issuers that simply have no short-term borrowings.
func BuildBundle(facts *CompanyFacts, taxonomy Taxonomy) model.FactBundle {
	bundle := model.FactBundle{
		Facts:  make(map[string]model.Fact, len(taxonomy.Facts)),
		Series: make(map[string][]float64, len(taxonomy.Series)),
	}

	for name, aliases := range taxonomy.Facts {
		bundle.Facts[name] = ExtractFact(facts, aliases, "annual")
	}

	for name, comp := range taxonomy.Composites {
		base := bundle.Facts[name]
		for _, tag := range comp.Add {
			addend := ExtractFact(facts, []string{tag}, "annual")
			base = sumFacts(base, addend)
		}
		bundle.Facts[name] = base
	}

	for name, def := range taxonomy.Series {
		if s := ExtractSeries(facts, def.Tag, def.Years); len(s) > 0 {
			bundle.Series[name] = s
		}
	}

	return bundle
}

// sumFacts adds two facts treating an absent side as 0; the result is
// absent only when both sides are. Provenance follows the base fact when
// present, otherwise the addend's.
func sumFacts(base, add model.Fact) model.Fact {
	switch {
	case base.Absent() && add.Absent():
		return model.Fact{}
	case base.Absent():
		return add
	case add.Absent():
		return base
	default:
		return model.PresentFact(*base.Value+*add.Value, *base.Provenance)
	}
}
