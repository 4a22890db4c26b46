package chunking

import "strings"

// section is one node of the two-level heading tree. Headings of level <= 2
// open top-level sections; level >= 3 opens a subsection of the current
// section. Content before any heading forms an anonymous section.
type section struct {
	title  string
	level  int
	blocks []block
	subs   []*section
}

func (s *section) hasContent() bool {
	if len(s.blocks) > 0 {
		return true
	}
	for _, sub := range s.subs {
		if sub.hasContent() || sub.title != "" {
			return true
		}
	}
	return false
}

// buildSections folds the block list into the section tree.
func buildSections(blocks []block) []*section {
	var sections []*section
	var top, sub *section

	ensureTop := func() {
		if top == nil {
			top = &section{}
			sections = append(sections, top)
		}
	}

	for _, b := range blocks {
		if b.kind == kindHeading {
			if b.level <= 2 {
				top = &section{title: b.text, level: b.level}
				sub = nil
				sections = append(sections, top)
			} else {
				ensureTop()
				sub = &section{title: b.text, level: b.level}
				top.subs = append(top.subs, sub)
			}
			continue
		}
		if sub != nil {
			sub.blocks = append(sub.blocks, b)
			continue
		}
		ensureTop()
		top.blocks = append(top.blocks, b)
	}

	kept := sections[:0]
	for _, s := range sections {
		if s.title != "" || s.hasContent() {
			kept = append(kept, s)
		}
	}
	return kept
}

// materialize renders a section's own heading and blocks as split units,
// excluding subsection content (subsections materialize separately with
// extended breadcrumbs).
func (s *section) materialize() []unit {
	var units []unit
	if s.title != "" {
		units = append(units, unit{
			text: strings.Repeat("#", s.level) + " " + s.title,
		})
	}
	for _, b := range s.blocks {
		if strings.TrimSpace(b.text) == "" {
			continue
		}
		units = append(units, unit{
			text:   b.text,
			atomic: b.atomic,
			isCode: b.kind == kindCode,
		})
	}
	return units
}
