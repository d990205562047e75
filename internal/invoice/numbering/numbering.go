// Package numbering formats authoritative invoice numbers. Sequence
// values come from the repository; callers never supply their own.
package numbering

import (
	"fmt"
	"strings"
)

// Formatter renders sequence values as display numbers, e.g. INV-000042.
type Formatter struct {
	Prefix string
}

func NewFormatter(prefix string) Formatter {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "INV"
	}
	return Formatter{Prefix: prefix}
}

func (f Formatter) Format(seq int64) string {
	return fmt.Sprintf("%s-%06d", f.Prefix, seq)
}
