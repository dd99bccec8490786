package internal

import (
	"fmt"
	"strings"
)

// CertAnnotation returns a parenthetical annotation like " (2 expired, 1 unchained)"
// for non-zero counts, or an empty string if both are zero. Unchained
// certificates are those whose issuer is not in the catalogue.
func CertAnnotation(expired, unchained int) string {
	var parts []string
	if expired > 0 {
		parts = append(parts, fmt.Sprintf("%d expired", expired))
	}
	if unchained > 0 {
		parts = append(parts, fmt.Sprintf("%d unchained", unchained))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
