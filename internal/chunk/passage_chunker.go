package chunk

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Options configures the passage chunker.
type Options struct {
	MaxTokens     int // Maximum tokens per passage (default: DefaultMaxTokens)
	OverlapTokens int // Tokens carried into the next passage when splitting; 0 disables
}

// PassageChunker splits text into page-bounded, paragraph-aware passages.
// Markdown headings open a new passage and set its section.
type PassageChunker struct {
	options Options
}

var _ Chunker = (*PassageChunker)(nil)

var (
	// Matches headers: # Title, ## Title, etc.
	headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

	// Matches frontmatter: ---\n...\n---
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.+?)\n---\n*`)

	// Blank line, possibly holding spaces or tabs
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
)

// NewPassageChunker creates a chunker with default options.
func NewPassageChunker() *PassageChunker {
	return NewPassageChunkerWithOptions(Options{
		MaxTokens:     DefaultMaxTokens,
		OverlapTokens: DefaultOverlapTokens,
	})
}

// NewPassageChunkerWithOptions creates a chunker with custom options.
func NewPassageChunkerWithOptions(opts Options) *PassageChunker {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}
	if opts.OverlapTokens >= opts.MaxTokens/2 {
		opts.OverlapTokens = opts.MaxTokens / 4
	}
	return &PassageChunker{options: opts}
}

// Options returns the effective options.
func (c *PassageChunker) Options() Options {
	return c.options
}

// Chunk splits doc into passages. Blank input yields an empty slice.
func (c *PassageChunker) Chunk(ctx context.Context, doc *DocumentInput) ([]*Passage, error) {
	if doc == nil {
		return nil, fmt.Errorf("document input is nil")
	}

	content := strings.ReplaceAll(string(doc.Content), "\r\n", "\n")
	if strings.TrimSpace(strings.ReplaceAll(content, PageSeparator, "")) == "" {
		return []*Passage{}, nil
	}
	if fm := frontmatterPattern.FindString(content); fm != "" {
		content = content[len(fm):]
	}

	b := &passageBuilder{
		documentID:    doc.DocumentID,
		maxTokens:     c.options.MaxTokens,
		overlapTokens: c.options.OverlapTokens,
		passages:      make([]*Passage, 0),
	}
	headers := make([]string, 6)

	for i, page := range strings.Split(content, PageSeparator) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.page = i + 1

		for _, para := range paragraphBreak.Split(page, -1) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}

			if m := headerPattern.FindStringSubmatch(firstLine(para)); m != nil {
				b.flush()
				level := len(m[1])
				headers[level-1] = strings.TrimSpace(m[2])
				for j := level; j < len(headers); j++ {
					headers[j] = ""
				}
				b.section = joinHeaders(headers)
			}

			for _, piece := range c.splitOversized(para) {
				b.add(piece)
			}
		}
		b.flush()
	}

	return b.passages, nil
}

// splitOversized breaks a paragraph larger than a passage into word runs
// that leave room for the overlap seed.
func (c *PassageChunker) splitOversized(para string) []string {
	if EstimateTokens(para) <= c.options.MaxTokens {
		return []string{para}
	}

	budget := c.options.MaxTokens - c.options.OverlapTokens - 1
	if budget < 1 {
		budget = 1
	}

	var pieces []string
	var cur string
	for _, word := range strings.Fields(para) {
		candidate := word
		if cur != "" {
			candidate = cur + " " + word
		}
		if cur != "" && EstimateTokens(candidate) > budget {
			pieces = append(pieces, cur)
			cur = word
			continue
		}
		cur = candidate
	}
	if cur != "" {
		pieces = append(pieces, cur)
	}
	return pieces
}

// passageBuilder accumulates paragraphs into passages.
type passageBuilder struct {
	documentID    string
	maxTokens     int
	overlapTokens int

	page    int
	section string
	parts   []string
	fresh   bool // parts hold more than an overlap seed

	passages []*Passage
}

func (b *passageBuilder) text() string {
	return strings.Join(b.parts, "\n\n")
}

func (b *passageBuilder) add(para string) {
	if b.fresh && EstimateTokens(b.text()+"\n\n"+para) > b.maxTokens {
		emitted := b.text()
		b.flush()

		seed := overlapTail(emitted, b.overlapTokens)
		if seed != "" && EstimateTokens(seed+"\n\n"+para) <= b.maxTokens {
			b.parts = []string{seed}
		}
	}

	b.parts = append(b.parts, para)
	b.fresh = true
}

func (b *passageBuilder) flush() {
	if b.fresh {
		content := b.text()
		ordinal := len(b.passages)
		b.passages = append(b.passages, &Passage{
			ID:         PassageID(b.documentID, b.page, ordinal),
			DocumentID: b.documentID,
			Page:       b.page,
			Ordinal:    ordinal,
			Section:    b.section,
			Content:    content,
			TokenCount: EstimateTokens(content),
		})
	}
	b.parts = nil
	b.fresh = false
}

// overlapTail returns the trailing words of text that fit in tokens.
func overlapTail(text string, tokens int) string {
	if tokens <= 0 {
		return ""
	}

	words := strings.Fields(text)
	start := len(words)
	for start > 0 {
		if EstimateTokens(strings.Join(words[start-1:], " ")) > tokens {
			break
		}
		start--
	}
	return strings.Join(words[start:], " ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func joinHeaders(headers []string) string {
	parts := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " > ")
}

// DetectTitle returns the first level-one heading of content, or "".
func DetectTitle(content []byte) string {
	for _, line := range strings.Split(string(content), "\n") {
		if m := headerPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil && len(m[1]) == 1 {
			return strings.TrimSpace(m[2])
		}
	}
	return ""
}
