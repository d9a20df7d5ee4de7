// Package identifier produces the prefixed opaque identifiers used across
// the scheduling core (ses_, cnd_, hld_, ...). Prefixes exist purely for
// human debuggability; callers must treat the values as opaque.
package identifier

import (
	"strings"

	"github.com/google/uuid"
)

const (
	PrefixSession      = "ses"
	PrefixCandidate    = "cnd"
	PrefixHold         = "hld"
	PrefixConstraint   = "cst"
	PrefixMilestone    = "mls"
	PrefixEvent        = "evt"
	PrefixUser         = "usr"
	PrefixGroupSession = "grp"
)

// New returns a fresh identifier with the given prefix, e.g. "ses_0f8a...".
func New(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}

// HasPrefix reports whether id carries the given prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_")
}
