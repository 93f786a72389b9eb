package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samvalverde/PAAA/internal/analytics"
	"github.com/samvalverde/PAAA/internal/config"
	"github.com/samvalverde/PAAA/internal/datasource/file"
	"github.com/samvalverde/PAAA/internal/etl"
	"github.com/samvalverde/PAAA/internal/narrative"
	"github.com/samvalverde/PAAA/internal/survey"
	"github.com/samvalverde/PAAA/internal/table"
)

func (a *app) loaderOptions(noRaw bool) survey.Options {
	s := a.cfg.Store
	return survey.Options{
		WriteRaw:        a.cfg.ETL.WriteRaw && !noRaw,
		RawSchema:       s.RawSchema,
		CoreSchema:      s.CoreSchema,
		CreateIfMissing: s.CreateIfMissing,
	}
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		programa, dataset, version, list string
		parallelism                      int
		noRaw                            bool
	)
	cmd := &cobra.Command{
		Use:   "load --programa P --dataset D [--version V] FILE...",
		Short: "Load survey files into the raw and core tables",
		Long: `Runs one ETL job per file: extract, transform (normalize, validate, dedupe)
and load (append to raw, upsert into core by programa + respondent key).
Files may be local paths, s3://bucket/key or http(s) URLs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			locators := append([]string(nil), args...)
			if list != "" {
				more, err := file.ReadList(list)
				if err != nil {
					return err
				}
				locators = append(locators, more...)
			}
			if len(locators) == 0 {
				return errors.New("load: no files given")
			}
			if parallelism <= 0 {
				parallelism = a.cfg.ETL.Parallelism
			}

			e, err := a.store(ctx)
			if err != nil {
				return err
			}
			r, err := a.reader(ctx, locators...)
			if err != nil {
				return err
			}
			reqs := make([]survey.Request, len(locators))
			for i, l := range locators {
				reqs[i] = survey.Request{Programa: programa, Dataset: dataset, Version: version, Source: l}
			}
			sums, err := survey.NewLoader(r, e, nil, a.loaderOptions(noRaw)).LoadMany(ctx, reqs, parallelism)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sums)
		},
	}
	f := cmd.Flags()
	f.StringVar(&programa, "programa", "", "program code stored in the programa column")
	f.StringVar(&dataset, "dataset", "", "dataset: "+strings.Join(survey.Names(), ", "))
	f.StringVar(&version, "version", "", "version label (default inferred from the file name)")
	f.StringVar(&list, "list", "", "file with one locator per line")
	f.IntVar(&parallelism, "parallelism", 0, "concurrent loads (default etl.parallelism)")
	f.BoolVar(&noRaw, "no-raw", false, "skip the raw audit append")
	_ = cmd.MarkFlagRequired("programa")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newLoadObjectCmd(a *app) *cobra.Command {
	var programa, dataset, filename, version string
	var noRaw bool
	cmd := &cobra.Command{
		Use:   "load-object --programa P --dataset D [--filename F] [--version V]",
		Short: "Load the matching object under {programa}/{dataset}/ in the bucket",
		Long: `Picks the object to load: an exact filename match, else the newest object
whose name contains --version, else the newest object under the prefix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := a.store(ctx)
			if err != nil {
				return err
			}
			objects, err := a.objectStore(ctx)
			if err != nil {
				return err
			}
			r, err := a.reader(ctx, "s3://"+objects.Bucket())
			if err != nil {
				return err
			}
			sum, err := survey.NewLoader(r, e, objects, a.loaderOptions(noRaw)).
				LoadFromStore(ctx, programa, dataset, filename, version)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sum)
		},
	}
	f := cmd.Flags()
	f.StringVar(&programa, "programa", "", "program code (object prefix)")
	f.StringVar(&dataset, "dataset", "", "dataset: "+strings.Join(survey.Names(), ", "))
	f.StringVar(&filename, "filename", "", "exact object name or suffix")
	f.StringVar(&version, "version", "", "version substring to prefer")
	f.BoolVar(&noRaw, "no-raw", false, "skip the raw audit append")
	_ = cmd.MarkFlagRequired("programa")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	var programa, dataset string
	cmd := &cobra.Command{
		Use:   "upload --programa P --dataset D FILE",
		Short: "Upload a survey file to {programa}/{dataset}/ in the bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ds, err := survey.Lookup(dataset)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			objects, err := a.objectStore(ctx)
			if err != nil {
				return err
			}
			name := filepath.Base(args[0])
			key := programa + "/" + ds.Name + "/" + name
			if err := objects.Put(ctx, key, data, mime.TypeByExtension(filepath.Ext(name))); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"bucket":      objects.Bucket(),
				"object_name": key,
				"size":        len(data),
				"version":     survey.InferVersion(name),
			})
		},
	}
	cmd.Flags().StringVar(&programa, "programa", "", "program code (object prefix)")
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset: "+strings.Join(survey.Names(), ", "))
	_ = cmd.MarkFlagRequired("programa")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

// analysisFlags are shared by analyze and narrate.
type analysisFlags struct {
	kind       string
	population string
	dists      []string
}

func (f *analysisFlags) bind(cmd *cobra.Command) {
	kinds := make([]string, 0, 3)
	for _, k := range analytics.Kinds() {
		kinds = append(kinds, string(k))
	}
	cmd.Flags().StringVar(&f.kind, "kind", string(analytics.KindGeneralSummary), "analysis: "+strings.Join(kinds, ", "))
	cmd.Flags().StringVar(&f.population, "population", "", `population descriptor JSON, e.g. {"dataset":"egresados","programa":"ATI"}`)
	cmd.Flags().StringArrayVar(&f.dists, "dist", nil, "column to distribute (repeatable)")
	_ = cmd.MarkFlagRequired("population")
}

// analysisOutput is the JSON printed by analyze and narrate.
type analysisOutput struct {
	Poblacion     *analytics.Descriptor `json:"poblacion"`
	TipoAnalitica analytics.Kind        `json:"tipo_analitica"`
	Resultados    *analytics.Result     `json:"resultados"`
	Narrativa     *string               `json:"narrativa,omitempty"`
}

func (a *app) analyze(cmd *cobra.Command, f *analysisFlags) (*analysisOutput, error) {
	var d analytics.Descriptor
	dec := json.NewDecoder(strings.NewReader(f.population))
	dec.UseNumber()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("--population: %w", err)
	}
	kind, err := analytics.ParseKind(f.kind)
	if err != nil {
		return nil, err
	}
	e, err := a.store(cmd.Context())
	if err != nil {
		return nil, err
	}
	res, err := analytics.NewAnalyzer(e, analytics.WithSchema(a.cfg.Store.CoreSchema)).
		Run(cmd.Context(), kind, &d, f.dists)
	if err != nil {
		return nil, err
	}
	return &analysisOutput{Poblacion: &d, TipoAnalitica: kind, Resultados: res}, nil
}

func newAnalyzeCmd(a *app) *cobra.Command {
	f := &analysisFlags{}
	cmd := &cobra.Command{
		Use:   "analyze --population JSON [--kind K] [--dist col]...",
		Short: "Compute an analytics report over a core table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.analyze(cmd, f)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	f.bind(cmd)
	return cmd
}

func newNarrateCmd(a *app) *cobra.Command {
	f := &analysisFlags{}
	var question, school string
	cmd := &cobra.Command{
		Use:   "narrate --question Q --population JSON [--kind K] [--dist col]...",
		Short: "Compute an analytics report and describe it in prose",
		Long: `Runs the report like analyze and asks the configured chat-completion
service for a one-paragraph narrative. A failing service yields an empty
narrative instead of an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.analyze(cmd, f)
			if err != nil {
				return err
			}
			if school == "" {
				school = a.cfg.Narrative.School
			}
			var gen narrative.Generator
			n := a.cfg.Narrative
			if g, err := narrative.NewHTTPGenerator(narrative.Config{
				URL:        n.URL,
				APIKey:     narrative.APIKey(n.APIKey, n.APIKeyFile),
				Model:      n.Model,
				Timeout:    n.Timeout,
				MaxRetries: n.MaxRetries,
			}); err == nil {
				gen = g
			}
			text := narrative.Narrate(cmd.Context(), gen, narrative.Request{
				Question:   question,
				Results:    out.Resultados,
				Population: out.Poblacion,
				School:     school,
			})
			out.Narrativa = &text
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&question, "question", "", "survey statement to describe")
	cmd.Flags().StringVar(&school, "school", "", "school name (default narrative.school)")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

// probeColumn describes one source column.
type probeColumn struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Nulls  int    `json:"nulls"`
}

type probeOutput struct {
	Source  string        `json:"source"`
	Rows    int           `json:"rows"`
	Columns []probeColumn `json:"columns"`
	Dataset string        `json:"dataset,omitempty"`
	Key     []string      `json:"key,omitempty"`
}

func newProbeCmd(a *app) *cobra.Command {
	var dataset string
	cmd := &cobra.Command{
		Use:   "probe [--dataset D] FILE",
		Short: "Show how a file's columns would be named, typed and keyed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := a.reader(ctx, args[0])
			if err != nil {
				return err
			}
			t, err := r.Read(ctx, args[0])
			if err != nil {
				return err
			}
			hdr, err := table.New(t.Names()...)
			if err != nil {
				return err
			}
			if hdr, err = etl.HeaderChain(etl.Config{}).Apply(hdr); err != nil {
				return err
			}
			out := probeOutput{Source: args[0], Rows: t.Len()}
			names := hdr.Names()
			for i, c := range t.Columns() {
				name := c.Name
				if i < len(names) {
					name = names[i]
				}
				out.Columns = append(out.Columns, probeColumn{
					Source: c.Name,
					Name:   name,
					Type:   c.Type.String(),
					Nulls:  c.NullCount(),
				})
			}
			if dataset != "" {
				ds, err := survey.Lookup(dataset)
				if err != nil {
					return err
				}
				key, _, err := survey.NewLoader(r, nil, nil, survey.DefaultOptions()).Preflight(ds, t)
				if err != nil {
					return err
				}
				out.Dataset = ds.Name
				out.Key = []string{"programa", key}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset whose key candidates to check")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Print configuration issues; exits non-zero on errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues := config.Validate(a.cfg)
			for _, iss := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return errors.New("configuration is invalid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})
	return cmd
}
