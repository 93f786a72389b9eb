package analytics

import (
	"context"
	"fmt"
	"strings"

	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/metrics"
	"github.com/samvalverde/PAAA/internal/table"
)

// Kind selects a report variant.
type Kind string

const (
	KindGeneralSummary    Kind = "resumen_general"
	KindPopulationProfile Kind = "perfil_poblacion"
	KindQuestionDetail    Kind = "detalle_pregunta"
)

// Kinds lists the supported report variants.
func Kinds() []Kind {
	return []Kind{KindGeneralSummary, KindPopulationProfile, KindQuestionDetail}
}

// ParseKind maps an empty kind to KindGeneralSummary and rejects unknown
// kinds with a *ConfigError.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	if k == "" {
		return KindGeneralSummary, nil
	}
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", &ConfigError{Field: "tipo_analitica", Reason: fmt.Sprintf("unsupported kind %q", s)}
}

// Loader reads a stored table. *storage.Engine satisfies it.
type Loader interface {
	LoadTable(ctx context.Context, schema, name string) (*table.Table, error)
}

// DefaultSchema is the schema analyses read from.
const DefaultSchema = "core"

// Analyzer runs report variants over core tables.
type Analyzer struct {
	loader   Loader
	schema   string
	fallback Settings
	settings map[string]Settings
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSchema reads tables from schema instead of DefaultSchema.
func WithSchema(schema string) Option {
	return func(a *Analyzer) {
		if schema != "" {
			a.schema = schema
		}
	}
}

// WithSettings overrides the settings used for dataset.
func WithSettings(dataset string, s Settings) Option {
	return func(a *Analyzer) { a.settings[dataset] = s }
}

// NewAnalyzer returns an Analyzer reading through l.
func NewAnalyzer(l Loader, opts ...Option) *Analyzer {
	a := &Analyzer{loader: l, schema: DefaultSchema, fallback: DefaultSettings(), settings: map[string]Settings{}}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SettingsFor returns the settings applied to dataset.
func (a *Analyzer) SettingsFor(dataset string) Settings {
	if s, ok := a.settings[dataset]; ok {
		return s
	}
	return a.fallback
}

// Run validates the request, loads <schema>.<dataset> and dispatches to the
// report variant of kind. d.N is back-filled with the filtered row count when
// it is nil. Configuration errors are returned before any read.
func (a *Analyzer) Run(ctx context.Context, kind Kind, d *Descriptor, dists []string) (res *Result, err error) {
	label := string(kind)
	defer func() { metrics.RecordAnalysis(label, err) }()

	if kind, err = ParseKind(string(kind)); err != nil {
		return nil, err
	}
	label = string(kind)
	if err = d.Validate(); err != nil {
		return nil, err
	}
	if kind == KindQuestionDetail && len(dists) == 0 {
		return nil, &ConfigError{Field: "distribuciones", Reason: "detalle_pregunta requires at least one variable"}
	}

	t, err := a.loader.LoadTable(ctx, a.schema, d.Dataset)
	if err != nil {
		return nil, fmt.Errorf("analytics: load %s.%s: %w", a.schema, d.Dataset, err)
	}
	logging.Debug().Str("dataset", d.Dataset).Str("kind", label).Int("rows", t.Len()).Msg("analytics: dataset loaded")

	s := a.SettingsFor(d.Dataset)
	switch kind {
	case KindPopulationProfile:
		res = PopulationProfile(t, d, dists, s)
	case KindQuestionDetail:
		res, err = QuestionDetail(t, d, dists, s)
	default:
		res = GeneralSummary(t, d, dists, s)
	}
	if err != nil {
		return nil, err
	}
	logging.Info().Str("dataset", d.Dataset).Str("kind", label).Int("n", *d.N).Msg("analytics: report computed")
	return res, nil
}

// Run is NewAnalyzer(l).Run.
func Run(ctx context.Context, l Loader, kind Kind, d *Descriptor, dists []string) (*Result, error) {
	return NewAnalyzer(l).Run(ctx, kind, d, dists)
}
