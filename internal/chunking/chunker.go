// Package chunking transforms extracted document text into a two-level
// parent/child chunk index with breadcrumb context.
//
// Parents carry a breadcrumb banner and hold enough surrounding text for
// context expansion; children are the retrieval units re-split from each
// parent's raw content. Fenced code blocks and tables are protected: they
// are never split across chunks, even when oversized.
package chunking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/model"
	"github.com/hsn0918/netkb/pkg/logger"
)

// ErrInvalidConfig indicates invalid chunker configuration.
var ErrInvalidConfig = errors.New("chunking: invalid configuration")

// Config defines the chunk size targets in bytes.
type Config struct {
	// MaxChunkSize is the hard cap for any non-protected split.
	MaxChunkSize int
	// ParentSize is the target size of parent chunks.
	ParentSize int
	// ChildSize is the target size of child (retrieval) chunks.
	ChildSize int
}

// Chunker builds parent/child chunks from UTF-8 text.
type Chunker struct {
	cfg Config
	log *zap.Logger
}

// New creates a Chunker after validating the configuration.
func New(cfg Config) (*Chunker, error) {
	if cfg.ParentSize <= 0 || cfg.ChildSize <= 0 || cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("%w: sizes must be positive", ErrInvalidConfig)
	}
	if cfg.ChildSize > cfg.ParentSize {
		return nil, fmt.Errorf("%w: child size must not exceed parent size", ErrInvalidConfig)
	}
	if cfg.ParentSize > cfg.MaxChunkSize {
		return nil, fmt.Errorf("%w: parent size must not exceed max chunk size", ErrInvalidConfig)
	}
	return &Chunker{cfg: cfg, log: logger.Get()}, nil
}

// Chunk parses text into ordered parent/child chunks for the document.
// Every returned chunk has non-empty content, parents appear before their
// children, and ChunkIndex is a monotonic integer over the whole list.
// Empty or whitespace-only input yields an empty list. Any parser failure
// degrades to the paragraph-split fallback without breadcrumbs.
func (c *Chunker) Chunk(docID, text string) (chunks []model.Chunk) {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("semantic chunking failed, falling back to paragraph split",
				zap.String("documentId", docID), zap.Any("panic", r))
			chunks = c.fallback(docID, text)
		}
	}()

	blocks := parseBlocks([]byte(text))
	if !hasStructure(blocks) {
		return c.fallback(docID, text)
	}

	sections := buildSections(blocks)

	var out []model.Chunk
	for _, top := range sections {
		var crumbs []string
		if top.title != "" {
			crumbs = []string{top.title}
		}
		out = c.emitSection(docID, crumbs, top.materialize(), out)
		for _, sub := range top.subs {
			subCrumbs := crumbs
			if sub.title != "" {
				subCrumbs = append(append([]string{}, crumbs...), sub.title)
			}
			out = c.emitSection(docID, subCrumbs, sub.materialize(), out)
		}
	}

	reindex(out)
	return out
}

// hasStructure reports whether the document has any heading or
// non-paragraph block worth a section tree.
func hasStructure(blocks []block) bool {
	for _, b := range blocks {
		if b.kind != kindParagraph && b.kind != kindRule {
			return true
		}
	}
	return false
}

// emitSection materializes one section's parents and their children.
func (c *Chunker) emitSection(docID string, crumbs []string, units []unit, out []model.Chunk) []model.Chunk {
	if len(units) == 0 {
		return out
	}

	segments := packUnits(units, c.cfg.ParentSize, c.cfg.MaxChunkSize)
	total := len(segments)
	header := ""
	if len(crumbs) > 0 {
		header = crumbs[len(crumbs)-1]
	}

	for i, seg := range segments {
		raw := seg.text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		banner := parentBanner(crumbs, i+1, total)
		parent := model.Chunk{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Content:    banner + raw,
			TokenCount: estimateTokens(banner + raw),
			ChunkType:  model.ChunkParent,
			Metadata: model.ChunkMetadata{
				Breadcrumbs:   crumbs,
				Header:        header,
				SegmentIndex:  i + 1,
				TotalSegments: total,
				IsCodeBlock:   isSingleCode(seg),
			},
		}
		out = append(out, parent)
		out = append(out, c.emitChildren(docID, &parent, seg, crumbs)...)
	}
	return out
}

// emitChildren re-splits a parent's raw content (without banner) into
// retrieval-sized children sharing the parent's id.
func (c *Chunker) emitChildren(docID string, parent *model.Chunk, seg segment, crumbs []string) []model.Chunk {
	childSegs := packUnits(seg.units, c.cfg.ChildSize, c.cfg.MaxChunkSize)
	total := len(childSegs)

	lastCrumb := ""
	if len(crumbs) > 0 {
		lastCrumb = crumbs[len(crumbs)-1]
	}

	children := make([]model.Chunk, 0, total)
	for i, cs := range childSegs {
		raw := cs.text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		content := raw
		if i > 0 && lastCrumb != "" {
			content = "[..." + lastCrumb + "]\n\n" + raw
		}
		children = append(children, model.Chunk{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Content:    content,
			TokenCount: estimateTokens(content),
			ChunkType:  model.ChunkChild,
			ParentID:   parent.ID,
			Metadata: model.ChunkMetadata{
				Breadcrumbs:   crumbs,
				Header:        parent.Metadata.Header,
				ChildIndex:    i + 1,
				TotalChildren: total,
				IsCodeBlock:   isSingleCode(cs),
			},
		})
	}
	return children
}

// parentBanner renders the breadcrumb prefix, e.g. "[A > B](2/3)\n\n".
// Sections without breadcrumbs carry no banner.
func parentBanner(crumbs []string, index, total int) string {
	if len(crumbs) == 0 {
		return ""
	}
	banner := "[" + strings.Join(crumbs, " > ") + "]"
	if total > 1 {
		banner += fmt.Sprintf("(%d/%d)", index, total)
	}
	return banner + "\n\n"
}

// fallback is the degraded path: a plain paragraph-split parent/child
// chunker without breadcrumbs, used when the document has no exploitable
// structure or the semantic parse failed.
func (c *Chunker) fallback(docID, text string) []model.Chunk {
	var out []model.Chunk
	for _, piece := range splitTextBySize(text, c.cfg.ParentSize, c.cfg.MaxChunkSize) {
		parent := model.Chunk{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Content:    piece,
			TokenCount: estimateTokens(piece),
			ChunkType:  model.ChunkParent,
		}
		out = append(out, parent)

		childPieces := splitTextBySize(piece, c.cfg.ChildSize, c.cfg.MaxChunkSize)
		for i, cp := range childPieces {
			out = append(out, model.Chunk{
				ID:         uuid.NewString(),
				DocumentID: docID,
				Content:    cp,
				TokenCount: estimateTokens(cp),
				ChunkType:  model.ChunkChild,
				ParentID:   parent.ID,
				Metadata: model.ChunkMetadata{
					ChildIndex:    i + 1,
					TotalChildren: len(childPieces),
				},
			})
		}
	}
	reindex(out)
	return out
}

func reindex(chunks []model.Chunk) {
	for i := range chunks {
		chunks[i].ChunkIndex = i
	}
}

func isSingleCode(seg segment) bool {
	return len(seg.units) == 1 && seg.units[0].isCode
}

// estimateTokens approximates the token count: CJK characters count one
// token each, runs of other characters roughly one token per four bytes.
func estimateTokens(text string) int {
	cjk := 0
	other := 0
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			cjk++
		} else {
			other += len(string(r))
		}
	}
	return cjk + (other+3)/4
}
