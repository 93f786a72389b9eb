package analytics

import (
	"strings"

	"github.com/samvalverde/PAAA/internal/table"
)

// Settings are the dataset-specific heuristics of the report variants.
type Settings struct {
	// SatisfactionColumn holds the headline satisfaction question.
	SatisfactionColumn string
	// SatisfactionScale maps its categorical answers to 1..5.
	SatisfactionScale map[string]float64
	// SatisfactionNPS classifies the mapped 1..5 answers.
	SatisfactionNPS Thresholds
	// DetailNPS classifies numeric question-detail answers.
	DetailNPS Thresholds
	// ScaleMinLow, ScaleMinHigh and ScaleMax bound the value range that
	// looks like a 0-10 or 1-10 scale.
	ScaleMinLow  float64
	ScaleMinHigh float64
	ScaleMax     float64
	// TopN caps question-detail category tables.
	TopN int
	// Summary lists the composition tables of the general summary.
	Summary []TableSpec
	// Profile is the demographic column resolution table.
	Profile []Field
}

// TableSpec names one general-summary composition table.
type TableSpec struct {
	Column   string
	TableKey string
	LabelKey string
}

// Field is one row of the column resolution table: the first exact
// candidate present wins, else the keyword sets are tried in order and the
// first column whose name contains every keyword of a set wins. Sets are
// alternatives, e.g. with and without the tilde.
type Field struct {
	Name       string
	Candidates []string
	Keywords   [][]string
	TableKey   string
	LabelKey   string
	// KeywordsUnless skips the keyword search when this field was found.
	KeywordsUnless string
}

// DefaultSettings returns the settings of the graduate and faculty surveys.
func DefaultSettings() Settings {
	return Settings{
		SatisfactionColumn: "ep07_18_en_general_cual_es_su_grado_de_satisfaccion_en_relacion",
		SatisfactionScale: map[string]float64{
			"Insatisfecho (a)":              1,
			"Algo satisfecho (a)":           2,
			"Satisfecho (a)":                3,
			"Muy satisfecho (a)":            4,
			"Extremadamente satisfecho (a)": 5,
		},
		SatisfactionNPS: Thresholds{Detractor: 2, Promoter: 4},
		DetailNPS:       ElevenPoint,
		ScaleMinLow:     0,
		ScaleMinHigh:    1,
		ScaleMax:        10,
		TopN:            10,
		Summary: []TableSpec{
			{Column: "ig01_1_el_posgrado_que_usted_curso_es", TableKey: "posgrados", LabelKey: "posgrado"},
			{Column: "programa", TableKey: "programas", LabelKey: "programa"},
		},
		Profile: []Field{
			{Name: "edad", Candidates: []string{"ipg03_5_edad"}, Keywords: [][]string{{"edad"}}, TableKey: "edad", LabelKey: "grupo_edad"},
			{Name: "sexo", Candidates: []string{"ipg01_3_sexo"}, Keywords: [][]string{{"sexo"}}, TableKey: "sexo", LabelKey: "sexo"},
			{Name: "programa", Candidates: []string{"programa"}, TableKey: "programas", LabelKey: "programa"},
			{
				Name:           "posgrado",
				Candidates:     []string{"ig01_1_el_posgrado_que_usted_curso_es"},
				Keywords:       [][]string{{"posgrado", "curso"}},
				KeywordsUnless: "programa",
				TableKey:       "posgrados",
				LabelKey:       "posgrado",
			},
			{
				Name:       "anio",
				Candidates: []string{"ig02_2_ano_de_graduacion"},
				Keywords:   [][]string{{"ano_de_graduacion"}, {"año_de_graduacion"}},
				TableKey:   "anio_graduacion",
				LabelKey:   "anio",
			},
			{
				Name:       "provincia",
				Candidates: []string{"ipg04_6_provincia_de_residencia_actual"},
				Keywords:   [][]string{{"provincia"}},
				TableKey:   "provincia",
				LabelKey:   "provincia",
			},
			{Name: "estado_civil", Candidates: []string{"ipg02_4_estado_civil"}, TableKey: "estado_civil", LabelKey: "estado_civil"},
			{Name: "condicion_laboral", Candidates: []string{"ipg05_7_cual_es_su_condicion_laboral_actual"}, TableKey: "condicion_laboral", LabelKey: "condicion_laboral"},
		},
	}
}

// LooksLikeScale reports whether a numeric range fits the 0-10 / 1-10 NPS
// heuristic.
func (s Settings) LooksLikeScale(min, max float64) bool {
	return min >= s.ScaleMinLow && min <= s.ScaleMinHigh && max <= s.ScaleMax
}

// Resolve locates every field of s.Profile in t. Fields that are not found
// are absent from the result.
func (s Settings) Resolve(t *table.Table) map[string]string {
	found := make(map[string]string, len(s.Profile))
	for _, f := range s.Profile {
		if col := firstExisting(t, f.Candidates); col != "" {
			found[f.Name] = col
		}
	}
	for _, f := range s.Profile {
		if _, ok := found[f.Name]; ok {
			continue
		}
		if f.KeywordsUnless != "" {
			if _, ok := found[f.KeywordsUnless]; ok {
				continue
			}
		}
		for _, kws := range f.Keywords {
			if col := findByKeywords(t, kws); col != "" {
				found[f.Name] = col
				break
			}
		}
	}
	return found
}

func firstExisting(t *table.Table, candidates []string) string {
	for _, c := range candidates {
		if t.Has(c) {
			return c
		}
	}
	return ""
}

// findByKeywords returns the first column whose lowercased name contains
// every keyword.
func findByKeywords(t *table.Table, keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	for _, name := range t.Names() {
		lower := strings.ToLower(name)
		all := true
		for _, kw := range keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				all = false
				break
			}
		}
		if all {
			return name
		}
	}
	return ""
}
