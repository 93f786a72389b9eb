package builtin

import (
	"sort"

	"github.com/samvalverde/PAAA/internal/table"
)

// AliasMap maps a canonical field name to the normalized header variants that
// mean the same thing. Treat values as immutable; use Clone before editing.
type AliasMap map[string][]string

// Clone returns a deep copy.
func (m AliasMap) Clone() AliasMap {
	out := make(AliasMap, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// DefaultAliases returns a fresh copy of the aliases recognized in survey
// spreadsheets.
func DefaultAliases() AliasMap {
	return AliasMap{
		"email": {
			"email", "e_mail", "mail",
			"correo", "correo_electronico", "correo_institucional", "correo_personal",
		},
		"periodo":       {"periodo", "periodo_academico", "semestre", "ciclo", "anio", "ano"},
		"id_estudiante": {"id_estudiante", "carne", "carnet", "cedula", "cedula_estudiante", "id"},
		"id_profesor":   {"id_profesor", "codigo", "id", "cedula", "cedula_profesor"},
	}
}

// ConflictPolicy decides what happens when several present columns are
// variants of the same canonical name.
type ConflictPolicy int

const (
	// ConflictError fails with *AliasConflictError.
	ConflictError ConflictPolicy = iota
	// ConflictFirst renames the first variant in alias order and leaves the
	// others untouched.
	ConflictFirst
)

// ResolveAliases renames recognized variants to their canonical name. It runs
// after NormalizeHeaders. A canonical name already present is never
// re-mapped, and columns are never fabricated. Canonical names are resolved
// in sorted order, so a variant shared by two canonical names (e.g. "cedula")
// goes to the first one alphabetically.
type ResolveAliases struct {
	Aliases    AliasMap
	OnConflict ConflictPolicy
}

func (ResolveAliases) Name() string { return "resolve_aliases" }

func (r ResolveAliases) Apply(t *table.Table) (*table.Table, error) {
	canon := make([]string, 0, len(r.Aliases))
	for c := range r.Aliases {
		canon = append(canon, c)
	}
	sort.Strings(canon)

	for _, c := range canon {
		if t.Has(c) {
			continue
		}
		var present []string
		for _, v := range r.Aliases[c] {
			if v != c && t.Has(v) {
				present = append(present, v)
			}
		}
		if len(present) == 0 {
			continue
		}
		if len(present) > 1 && r.OnConflict == ConflictError {
			return nil, &AliasConflictError{Canonical: c, Sources: present}
		}
		if err := t.Rename(present[0], c); err != nil {
			return nil, err
		}
	}
	return t, nil
}
