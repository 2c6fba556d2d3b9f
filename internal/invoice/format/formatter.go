// Package format renders invoice numbers from templates.
package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tokenRe = regexp.MustCompile(`\{([A-Z]+)(\d*)\}`)

const DefaultInvoiceNumberTemplate = "INV-{YYYY}-{SEQ6}"

// FormatInvoiceNumber expands {YYYY}, {YY}, {MM}, {DD}, {SEQ} and {SEQn}
// (sequence zero-padded to n digits). Unknown tokens are an error.
func FormatInvoiceNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	var unknown []string
	out := tokenRe.ReplaceAllStringFunc(template, func(tok string) string {
		m := tokenRe.FindStringSubmatch(tok)
		name, width := m[1], m[2]

		switch {
		case name == "YYYY" && width == "":
			return issuedAt.Format("2006")
		case name == "YY" && width == "":
			return issuedAt.Format("06")
		case name == "MM" && width == "":
			return issuedAt.Format("01")
		case name == "DD" && width == "":
			return issuedAt.Format("02")
		case name == "SEQ" && width == "":
			return strconv.FormatInt(seq, 10)
		case name == "SEQ":
			n, err := strconv.Atoi(width)
			if err != nil || n <= 0 {
				break
			}
			return fmt.Sprintf("%0*d", n, seq)
		}
		unknown = append(unknown, tok)
		return tok
	})

	if len(unknown) > 0 {
		return "", fmt.Errorf("unresolved token in invoice format: %s", strings.Join(unknown, ","))
	}
	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unbalanced braces in invoice format: %s", out)
	}
	return out, nil
}
