package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumber(t *testing.T) {
	issued := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		template string
		seq      int64
		want     string
	}{
		{DefaultInvoiceNumberTemplate, 1, "INV-2025-000001"},
		{DefaultInvoiceNumberTemplate, 1234567, "INV-2025-1234567"},
		{"{YY}{MM}{DD}/{SEQ}", 42, "250704/42"},
		{"R-{SEQ3}", 7, "R-007"},
	}
	for _, tc := range cases {
		got, err := FormatInvoiceNumber(tc.template, issued, tc.seq)
		require.NoError(t, err, tc.template)
		assert.Equal(t, tc.want, got)
	}
}

func TestFormatInvoiceNumberRejects(t *testing.T) {
	issued := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	_, err := FormatInvoiceNumber("", issued, 1)
	assert.Error(t, err)
	_, err = FormatInvoiceNumber(DefaultInvoiceNumberTemplate, issued, 0)
	assert.Error(t, err)
	_, err = FormatInvoiceNumber("INV-{HOUR}-{SEQ}", issued, 1)
	assert.Error(t, err)
	_, err = FormatInvoiceNumber("INV-{SEQ0}", issued, 1)
	assert.Error(t, err)
	_, err = FormatInvoiceNumber("INV-{seq}", issued, 1)
	assert.Error(t, err)
}
