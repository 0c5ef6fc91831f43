package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapentity/pkg/core"
)

// Identity describes one logical data source. Equal identities share one
// provider.
type Identity struct {
	// Vendor is the registered provider name, e.g. "postgres".
	Vendor string
	// Shape names the connection shape, typically the source name from the
	// configuration or a credential-free form of the connection string.
	Shape   string
	Case    core.CasePolicy
	Options map[string]string
	// Params are passed to the vendor factory unchanged.
	Params map[string]any
}

// Key returns the deterministic registry key of the identity.
func (id Identity) Key() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(id.Vendor)))
	b.WriteByte('|')
	b.WriteString(id.Shape)
	b.WriteByte('|')
	b.WriteString(id.Case.String())

	for _, k := range sortedKeys(id.Options) {
		fmt.Fprintf(&b, "|%s=%s", k, id.Options[k])
	}
	for _, k := range sortedKeys(id.Params) {
		fmt.Fprintf(&b, "|%s:%v", k, id.Params[k])
	}
	return b.String()
}

// String implements fmt.Stringer.
func (id Identity) String() string {
	return id.Key()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
