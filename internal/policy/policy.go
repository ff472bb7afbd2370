// Package policy loads the ordered platform policy table and scores a
// dependency graph against it, selecting the highest-priority policy the
// graph already satisfies and, separately, the highest-priority one it
// could satisfy once non-whitelisted libraries are grafted.
package policy

import (
	"embed"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"

	"github.com/pypa/auditwheel-go/internal/elfinfo"
)

//go:embed schema.json
var schemaFS embed.FS

// PolicyElement is the raw JSON shape of one policy table entry, as
// described in spec.md §3/§6.
type PolicyElement struct {
	Name           string              `json:"name"`
	Aliases        []string            `json:"aliases"`
	Priority       int                 `json:"priority"`
	SymbolVersions map[string]string   `json:"symbol_versions"`
	LibWhitelist   []string            `json:"lib_whitelist"`
	Blacklist      map[string][]string `json:"blacklist"`
}

// Policy is a PolicyElement after its version strings have been parsed and
// its whitelist/blacklist turned into lookup sets.
type Policy struct {
	Name           string
	Aliases        []string
	Priority       int
	Arch           string // "" for an architecture-agnostic policy (e.g. "linux")
	SymbolVersions map[string]elfinfo.SymbolVersion
	Whitelist      map[string]bool
	Blacklist      map[string]map[string]bool
}

// Table is the policy list ordered by Priority descending, as spec.md §4.D
// requires ("indexed by priority descending").
type Table []*Policy

// ErrSchemaInvalid is returned by Load when raw fails PolicyElement[]
// schema validation; the error message carries the individual violations.
var ErrSchemaInvalid = errors.New("policy: policy table failed schema validation")

// Load validates raw against the embedded PolicyElement[] JSON Schema, then
// parses it into a priority-descending Table.
func Load(raw []byte) (Table, error) {
	schemaDoc, err := schemaFS.ReadFile("schema.json")
	if err != nil {
		return nil, errors.Wrap(err, "policy: read embedded schema")
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaDoc)
	docLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, errors.Wrap(err, "policy: validate")
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.Wrap(ErrSchemaInvalid, strings.Join(msgs, "; "))
	}

	var elements []PolicyElement
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, errors.Wrap(err, "policy: unmarshal")
	}

	table := make(Table, 0, len(elements))
	for _, el := range elements {
		table = append(table, fromElement(el))
	}
	sort.SliceStable(table, func(i, j int) bool { return table[i].Priority > table[j].Priority })
	return table, nil
}

func fromElement(el PolicyElement) *Policy {
	p := &Policy{
		Name:           el.Name,
		Aliases:        el.Aliases,
		Priority:       el.Priority,
		Arch:           archSuffix(el.Name),
		SymbolVersions: make(map[string]elfinfo.SymbolVersion, len(el.SymbolVersions)),
		Whitelist:      make(map[string]bool, len(el.LibWhitelist)),
		Blacklist:      make(map[string]map[string]bool, len(el.Blacklist)),
	}
	for group, ver := range el.SymbolVersions {
		p.SymbolVersions[group] = elfinfo.ParseSymbolVersion(group + "_" + ver)
	}
	for _, lib := range el.LibWhitelist {
		p.Whitelist[lib] = true
	}
	for lib, syms := range el.Blacklist {
		set := make(map[string]bool, len(syms))
		for _, s := range syms {
			set[s] = true
		}
		p.Blacklist[lib] = set
	}
	return p
}

func archSuffix(name string) string {
	for _, tok := range elfinfo.ArchTokens {
		if strings.HasSuffix(name, "_"+tok) {
			return tok
		}
	}
	return ""
}

// ByName finds a policy by its canonical name or one of its aliases.
func (t Table) ByName(name string) *Policy {
	for _, p := range t {
		if p.Name == name {
			return p
		}
		for _, a := range p.Aliases {
			if a == name {
				return p
			}
		}
	}
	return nil
}
