// Package receipt inspects the HTML the checkout flow leaves behind.
package receipt

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Contains reports whether marker occurs literally in html. The match is
// case-sensitive and includes markup, matching a raw page-content search.
func Contains(html, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(html, marker)
}

// Transcriber renders bill markup as Markdown
type Transcriber struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewTranscriber builds a Transcriber with the UGC sanitizer, which strips
// style and script blocks the bill carries for print media
func NewTranscriber() *Transcriber {
	return &Transcriber{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Transcript converts the outer HTML of the bill to Markdown. Empty input
// yields an empty transcript.
func (t *Transcriber) Transcript(billHTML string) (string, error) {
	if strings.TrimSpace(billHTML) == "" {
		return "", nil
	}

	clean := t.policy.Sanitize(billHTML)
	md, err := t.conv.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("receipt: convert to markdown: %w", err)
	}
	return strings.TrimSpace(md) + "\n", nil
}
