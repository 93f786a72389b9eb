package analytics

import (
	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/table"
)

// Result is the analytics payload.
type Result struct {
	KPIs           map[string]any            `json:"kpis"`
	Tablas         map[string][]Row          `json:"tablas"`
	Distribuciones map[string]map[string]int `json:"distribuciones"`
}

func newResult() *Result {
	return &Result{
		KPIs:           map[string]any{},
		Tablas:         map[string][]Row{},
		Distribuciones: map[string]map[string]int{},
	}
}

// distribute adds a distribution for every column of cols that t has.
// Absent columns are logged and skipped.
func (r *Result) distribute(t *table.Table, cols []string) {
	for _, col := range cols {
		values, ok := columnValues(t, col)
		if !ok {
			logging.Warn().Str("column", col).Msg("analytics: distribution column not found, skipped")
			continue
		}
		r.Distribuciones[col] = Distribution(values)
	}
}

// GeneralSummary filters t by d and reports the row count, the satisfaction
// KPIs when the satisfaction column is present, the composition tables of
// s.Summary and the requested distributions.
func GeneralSummary(t *table.Table, d *Descriptor, dists []string, s Settings) *Result {
	t = ApplyFilters(t, d)
	n := t.Len()
	d.backfill(n)

	r := newResult()
	r.KPIs["total_registros"] = n

	if values, ok := columnValues(t, s.SatisfactionColumn); ok {
		var mapped []float64
		for _, v := range values {
			if v == nil {
				continue
			}
			if score, ok := s.SatisfactionScale[table.Format(v)]; ok {
				mapped = append(mapped, score)
			}
		}
		if len(mapped) > 0 {
			r.KPIs["satisfaccion_media"] = Describe(mapped).Mean
			r.KPIs["nps"] = NPS(mapped, s.SatisfactionNPS).Score
		}
	}

	for _, spec := range s.Summary {
		if values, ok := columnValues(t, spec.Column); ok {
			r.Tablas[spec.TableKey] = Composition(values, spec.LabelKey, "Sin especificar", 0)
		}
	}
	r.distribute(t, dists)
	return r
}

// profileDistributions are the resolved fields distributed by default.
var profileDistributions = []string{"edad", "sexo", "anio", "provincia", "estado_civil", "condicion_laboral"}

// PopulationProfile filters t by d and describes its demographic makeup
// using the column resolution table of s.
func PopulationProfile(t *table.Table, d *Descriptor, dists []string, s Settings) *Result {
	t = ApplyFilters(t, d)
	n := t.Len()
	d.backfill(n)

	r := newResult()
	r.KPIs["total_registros"] = n
	found := s.Resolve(t)
	logging.Debug().Interface("columns", found).Msg("analytics: profile columns resolved")

	if col, ok := found["edad"]; ok {
		ageKPIs(r, t, col)
	}
	if col, ok := found["sexo"]; ok {
		values, _ := columnValues(t, col)
		valid := nonNull(values)
		if len(valid) > 0 {
			var men, women int
			for _, v := range valid {
				switch table.Format(v) {
				case "Hombre":
					men++
				case "Mujer":
					women++
				}
			}
			if both := men + women; both > 0 {
				r.KPIs["porcentaje_hombres"] = round1(float64(men) * 100 / float64(both))
				r.KPIs["porcentaje_mujeres"] = round1(float64(women) * 100 / float64(both))
			}
			r.KPIs["n_con_datos_sexo"] = len(valid)
		}
	}

	for _, f := range s.Profile {
		col, ok := found[f.Name]
		if !ok {
			continue
		}
		values, _ := columnValues(t, col)
		r.Tablas[f.TableKey] = Composition(values, f.LabelKey, "Sin dato", 0)
	}

	seen := map[string]bool{}
	var cols []string
	for _, name := range profileDistributions {
		if col, ok := found[name]; ok && !seen[col] {
			seen[col] = true
			cols = append(cols, col)
		}
	}
	for _, col := range dists {
		if !seen[col] {
			seen[col] = true
			cols = append(cols, col)
		}
	}
	r.distribute(t, cols)
	return r
}

// ageKPIs reports the age column numerically when it holds numbers and as
// age brackets otherwise.
func ageKPIs(r *Result, t *table.Table, col string) {
	c, _ := t.Column(col)
	valid := nonNull(c.Values)
	if len(valid) == 0 {
		return
	}
	r.KPIs["n_con_datos_edad"] = len(valid)
	if c.Type == table.Int || c.Type == table.Float {
		nums, _ := Numbers(valid)
		sum := Describe(nums)
		r.KPIs["edad_promedio"] = round1(sum.Mean)
		r.KPIs["edad_mediana"] = sum.Median
		r.KPIs["edad_min"] = sum.Min
		r.KPIs["edad_max"] = sum.Max
		return
	}
	counts := ValueCounts(valid)
	labels := make([]string, len(counts))
	for i, c := range counts {
		labels[i] = c.Label
	}
	r.KPIs["categoria_edad_mas_comun"] = labels[0]
	r.KPIs["categorias_edad_disponibles"] = labels
}

// QuestionDetail filters t by d and analyses every variable of dists. It
// fails with a *ConfigError when dists is empty and with a
// *ColumnNotFoundError when a variable is not in the dataset.
func QuestionDetail(t *table.Table, d *Descriptor, dists []string, s Settings) (*Result, error) {
	if len(dists) == 0 {
		return nil, &ConfigError{Field: "distribuciones", Reason: "detalle_pregunta requires at least one variable"}
	}
	for _, v := range dists {
		if !t.Has(v) {
			return nil, &ColumnNotFoundError{Dataset: d.Dataset, Column: v}
		}
	}

	t = ApplyFilters(t, d)
	n := t.Len()
	d.backfill(n)

	r := newResult()
	for _, variable := range dists {
		values, _ := columnValues(t, variable)
		nums, _ := Numbers(values)
		numeric := len(nums) > 0

		valid := len(nums)
		if !numeric {
			valid = len(nonNull(values))
		}
		kpis := map[string]any{
			"variable":             variable,
			"n_total_poblacion":    n,
			"n_respuestas_validas": valid,
			"porcentaje_respuesta": 0.0,
			"es_numerica":          numeric,
		}
		if n > 0 {
			kpis["porcentaje_respuesta"] = float64(valid) * 100 / float64(n)
		}

		if numeric {
			sum := Describe(nums)
			kpis["media"] = sum.Mean
			kpis["mediana"] = sum.Median
			kpis["desviacion_estandar"] = sum.StdDev
			kpis["min"] = sum.Min
			kpis["max"] = sum.Max
			r.Tablas[variable+"_cuartiles"] = []Row{
				{"percentil": 25, "valor": sum.Q1},
				{"percentil": 50, "valor": sum.Median},
				{"percentil": 75, "valor": sum.Q3},
			}
			if s.LooksLikeScale(sum.Min, sum.Max) {
				kpis["nps"] = NPS(nums, s.DetailNPS).Score
			}
		} else {
			r.Tablas[variable+"_top_categorias"] = Composition(values, "categoria", "Sin respuesta", s.TopN)
		}

		r.KPIs[variable] = kpis
		r.Distribuciones[variable] = Distribution(values)
	}
	return r, nil
}
