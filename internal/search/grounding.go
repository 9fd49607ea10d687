package search

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Aman-CERP/studyrag/pkg/merge"
)

// ContextSeparator separates passages in a grounding context block.
const ContextSeparator = "\n\n---\n\n"

// Grounding is the material handed to answer generation.
type Grounding struct {
	Status   string   `json:"status"`
	Question string   `json:"question"`
	Context  string   `json:"context"`
	Prompt   string   `json:"prompt"`
	Sources  []Result `json:"sources"`
	Degraded bool     `json:"degraded,omitempty"`
}

// BuildContext joins candidate contents in order into one block of at most
// maxChars bytes. A passage that would overflow the budget ends the block;
// a first passage larger than the budget is cut to fit. maxChars <= 0
// means unbounded. It returns the block and how many passages it holds.
func BuildContext(cands []merge.Candidate, maxChars int) (string, int) {
	var b strings.Builder
	used := 0
	for _, c := range cands {
		content := c.Content
		extra := len(content)
		if used > 0 {
			extra += len(ContextSeparator)
		}

		if maxChars > 0 && b.Len()+extra > maxChars {
			if used == 0 {
				b.WriteString(truncateUTF8(content, maxChars))
				used = 1
			}
			break
		}

		if used > 0 {
			b.WriteString(ContextSeparator)
		}
		b.WriteString(content)
		used++
	}
	return b.String(), used
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// promptData feeds groundingPrompt.
type promptData struct {
	Question string
	Context  string
	Sources  []promptSource
}

type promptSource struct {
	N       int
	Page    int
	Section string
}

var groundingPrompt = template.Must(template.New("grounding").Parse(
	`Answer the question using only the study material below. Cite the page of every fact you use as [p. N]. If the material does not contain the answer, say so.

Study material:
{{.Context}}

Sources, in the order above:
{{range .Sources}}[{{.N}}] p. {{.Page}}{{if .Section}} ({{.Section}}){{end}}
{{end}}
Question: {{.Question}}
Answer:`))

// BuildPrompt renders the answer prompt for question over a context block
// and the results it was built from.
func BuildPrompt(question, context string, results []Result) (string, error) {
	data := promptData{Question: question, Context: context}
	for i, r := range results {
		data.Sources = append(data.Sources, promptSource{
			N:       i + 1,
			Page:    r.Page,
			Section: r.Section,
		})
	}

	var b strings.Builder
	if err := groundingPrompt.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render grounding prompt: %w", err)
	}
	return b.String(), nil
}
