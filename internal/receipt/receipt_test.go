package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bill = `<div id="printable-bill" class="print-only">
<style>.print-only { display: none; }</style>
<script>window.track && window.track("bill")</script>
<h1>Corner Cafe</h1>
<p><strong>*** RECEIPT ***</strong></p>
<table>
<thead><tr><th>Item</th><th>Qty</th><th>Total</th></tr></thead>
<tbody><tr><td>Espresso</td><td>1</td><td>$3.50</td></tr></tbody>
</table>
</div>`

func TestContains(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		marker string
		want   bool
	}{
		{"present", bill, "RECEIPT", true},
		{"case sensitive", "<p>receipt</p>", "RECEIPT", false},
		{"absent", "<p>Thanks</p>", "RECEIPT", false},
		{"in attribute", `<div data-kind="RECEIPT"></div>`, "RECEIPT", true},
		{"empty marker", bill, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(tt.html, tt.marker))
		})
	}
}

func TestTranscript(t *testing.T) {
	md, err := NewTranscriber().Transcript(bill)
	require.NoError(t, err)

	assert.Contains(t, md, "# Corner Cafe")
	assert.Contains(t, md, "RECEIPT")
	assert.Contains(t, md, "Espresso")
	assert.Contains(t, md, "| Item")
	assert.NotContains(t, md, "display: none")
	assert.NotContains(t, md, "window.track")
}

func TestTranscriptEmpty(t *testing.T) {
	md, err := NewTranscriber().Transcript("  \n")
	require.NoError(t, err)
	assert.Empty(t, md)
}
