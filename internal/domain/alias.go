package domain

import "slices"

// AliasTable records which physical indices exist and which aliases point
// at them.
type AliasTable struct {
	Indices []string            `json:"indices"`
	Aliases map[string][]string `json:"aliases"`
}

// NewAliasTable returns an empty table.
func NewAliasTable() AliasTable {
	return AliasTable{Aliases: make(map[string][]string)}
}

// HasIndex reports whether name is a known physical index.
func (t AliasTable) HasIndex(name string) bool {
	return slices.Contains(t.Indices, name)
}

// Clone returns a deep copy of t.
func (t AliasTable) Clone() AliasTable {
	c := AliasTable{
		Indices: slices.Clone(t.Indices),
		Aliases: make(map[string][]string, len(t.Aliases)),
	}
	for k, v := range t.Aliases {
		c.Aliases[k] = slices.Clone(v)
	}
	return c
}
