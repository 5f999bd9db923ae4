package query

import (
	"sort"
	"strings"
)

// Registry is the set of recognized currency codes, built explicitly at
// startup from the tracked fiat and crypto lists plus the base currency
type Registry struct {
	codes map[string]struct{}
}

// NewRegistry creates a currency registry over the given code lists
func NewRegistry(codeLists ...[]string) *Registry {
	codes := make(map[string]struct{})

	for _, list := range codeLists {
		for _, code := range list {
			codes[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
		}
	}

	return &Registry{
		codes: codes,
	}
}

// Supported reports whether the currency code is recognized
func (r *Registry) Supported(code string) bool {
	_, ok := r.codes[strings.ToUpper(strings.TrimSpace(code))]

	return ok
}

// Codes lists the recognized currency codes, sorted
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.codes))

	for code := range r.codes {
		out = append(out, code)
	}

	sort.Strings(out)

	return out
}
