package chunking

import "strings"

// unit is one indivisible-or-splittable span of section content. Atomic
// units (code fences, tables, list items) may exceed the target size and
// are emitted whole; everything else is split at paragraph, then sentence
// granularity.
type unit struct {
	text   string
	atomic bool
	isCode bool
}

// segment is a packed run of units destined to become one chunk.
type segment struct {
	units []unit
	size  int
}

func (s *segment) add(u unit) {
	if s.size > 0 {
		s.size += 2 // "\n\n" separator
	}
	s.size += len(u.text)
	s.units = append(s.units, u)
}

func (s *segment) text() string {
	parts := make([]string, len(s.units))
	for i, u := range s.units {
		parts[i] = u.text
	}
	return strings.Join(parts, "\n\n")
}

// packUnits groups units into segments no larger than size, splitting
// oversized non-atomic units down to sentences (hard-capped at hardCap)
// and emitting oversized atomic units as their own segment.
func packUnits(units []unit, size, hardCap int) []segment {
	var segs []segment
	cur := segment{}

	flush := func() {
		if len(cur.units) > 0 {
			segs = append(segs, cur)
			cur = segment{}
		}
	}

	for _, u := range units {
		if len(u.text) > size {
			if u.atomic {
				// Protected block: never split, even oversized.
				flush()
				seg := segment{}
				seg.add(u)
				segs = append(segs, seg)
				continue
			}
			for _, piece := range splitTextBySize(u.text, size, hardCap) {
				if cur.size > 0 && cur.size+2+len(piece) > size {
					flush()
				}
				cur.add(unit{text: piece})
			}
			continue
		}
		if cur.size > 0 && cur.size+2+len(u.text) > size {
			flush()
		}
		cur.add(u)
	}
	flush()
	return segs
}

// splitTextBySize divides free text into pieces of at most size bytes,
// preferring paragraph boundaries, then sentence boundaries, then a hard
// cut at hardCap for pathological single sentences.
func splitTextBySize(text string, size, hardCap int) []string {
	var pieces []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			pieces = append(pieces, s)
		}
		cur.Reset()
	}

	appendSpan := func(span, sep string) {
		if cur.Len() > 0 && cur.Len()+len(sep)+len(span) > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(span)
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= size {
			appendSpan(para, "\n\n")
			continue
		}
		for _, sentence := range splitSentences(para) {
			if len(sentence) <= size {
				appendSpan(sentence, " ")
				continue
			}
			limit := size
			if hardCap > 0 && hardCap < limit {
				limit = hardCap
			}
			for _, cut := range hardSplit(sentence, limit) {
				appendSpan(cut, " ")
			}
		}
	}
	flush()
	return pieces
}

// sentence terminators: CJK fullwidth stops always end a sentence; an
// ASCII terminator ends one when followed by whitespace or end of text.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		end := false
		switch r {
		case '。', '！', '？', '；':
			end = true
		case '.', '!', '?', ';':
			if i == len(runes)-1 || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				end = true
			}
		case '\n':
			end = true
		}
		if end {
			if s := strings.TrimSpace(cur.String()); s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// hardSplit cuts text into size-byte pieces on rune boundaries.
func hardSplit(text string, size int) []string {
	var pieces []string
	var cur strings.Builder
	for _, r := range text {
		if cur.Len()+len(string(r)) > size && cur.Len() > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}
