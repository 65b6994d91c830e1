package notation

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/RigiResearch/middleware-sub001/pkg/spec"
)

type rawComment struct {
	text      string
	start     hcl.Pos
	end       hcl.Pos
	startLine int
	endLine   int
}

func collectComments(tokens hclsyntax.Tokens) []rawComment {
	var out []rawComment
	for _, tok := range tokens {
		if tok.Type != hclsyntax.TokenComment {
			continue
		}
		raw := strings.TrimRight(string(tok.Bytes), "\r\n")
		lines := strings.Split(raw, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(line)
		}
		out = append(out, rawComment{
			text:      strings.Join(lines, "\n"),
			start:     tok.Range.Start,
			end:       tok.Range.End,
			startLine: tok.Range.Start.Line,
			endLine:   tok.Range.Start.Line + len(lines) - 1,
		})
	}
	return out
}

// fold adds c to an owner's comment. Texts are joined in source order; the
// result stays After only when both parts are After.
func fold(existing *spec.Comment, c spec.Comment) *spec.Comment {
	if existing == nil {
		return &c
	}
	pos := spec.Before
	if existing.Position == spec.After && c.Position == spec.After {
		pos = spec.After
	}
	return &spec.Comment{Text: existing.Text + "\n" + c.Text, Position: pos}
}

func (it *item) addComment(c spec.Comment) {
	it.comment = fold(it.comment, c)
}

// innermost returns the deepest block body whose braces enclose the comment.
func (s *scope) innermost(c rawComment) *scope {
	for _, it := range s.items {
		if it.body == nil {
			continue
		}
		if it.body.open.Byte <= c.start.Byte && c.end.Byte <= it.body.close.Byte {
			return it.body.innermost(c)
		}
	}
	return s
}

// within returns the attribute whose expression spans the comment.
func (s *scope) within(c rawComment) *item {
	for _, it := range s.items {
		if it.attr != nil && it.start.Byte < c.start.Byte && c.start.Byte < it.end.Byte {
			return it
		}
	}
	return nil
}

// endingOn returns the item whose last line holds the comment after it.
func (s *scope) endingOn(c rawComment) *item {
	for _, it := range s.items {
		if it.end.Line == c.startLine && it.end.Byte <= c.start.Byte {
			return it
		}
	}
	return nil
}

func (s *scope) next(after hcl.Pos) *item {
	for _, it := range s.items {
		if it.start.Byte >= after.Byte {
			return it
		}
	}
	return nil
}

func (s *scope) previous(before hcl.Pos) *item {
	var prev *item
	for _, it := range s.items {
		if it.end.Byte <= before.Byte {
			prev = it
		}
	}
	return prev
}

// attach distributes comments to the items they annotate:
//   - a run of comment lines directly above an item is Before it,
//   - a single-line comment after an item on its last line is Inline,
//   - a comment on a block's opening line belongs to the block,
//   - inside a body, a detached run goes After the preceding item,
//   - at top level, a detached run directly below a resource is After it and
//     anything else is an orphan comment of the document.
func (p *parser) attach(root *scope, comments []rawComment) {
	byScope := map[*scope][]rawComment{}
	var order []*scope
	for _, c := range comments {
		s := root.innermost(c)
		if _, ok := byScope[s]; !ok {
			order = append(order, s)
		}
		byScope[s] = append(byScope[s], c)
	}
	for _, s := range order {
		p.attachScope(s, byScope[s])
	}
}

func (p *parser) attachScope(s *scope, cs []rawComment) {
	for i := 0; i < len(cs); {
		c := cs[i]
		singleLine := c.startLine == c.endLine

		if it := s.within(c); it != nil {
			pos := spec.Before
			if singleLine && it.end.Line == c.startLine {
				pos = spec.Inline
			}
			it.addComment(spec.Comment{Text: c.text, Position: pos})
			i++
			continue
		}
		if it := s.endingOn(c); it != nil && singleLine {
			it.addComment(spec.Comment{Text: c.text, Position: spec.Inline})
			i++
			continue
		}
		if s.owner != nil && c.startLine == s.open.Line && singleLine {
			s.owner.addComment(spec.Comment{Text: c.text, Position: spec.Inline})
			i++
			continue
		}

		j := i + 1
		for j < len(cs) && cs[j].startLine == cs[j-1].endLine+1 && s.endingOn(cs[j]) == nil && s.within(cs[j]) == nil {
			j++
		}
		group := cs[i:j]
		last := group[len(group)-1]
		texts := make([]string, len(group))
		for k, g := range group {
			texts[k] = g.text
		}
		text := strings.Join(texts, "\n")
		i = j

		next := s.next(last.end)
		if next != nil && next.start.Line == last.endLine+1 {
			next.addComment(spec.Comment{Text: text, Position: spec.Before})
			continue
		}
		prev := s.previous(c.start)
		if s.owner == nil {
			if prev != nil && c.startLine == prev.end.Line+1 {
				prev.addComment(spec.Comment{Text: text, Position: spec.After})
				continue
			}
			p.orphans = append(p.orphans, spec.Comment{Text: text, Position: spec.Before})
			continue
		}
		switch {
		case prev != nil:
			prev.addComment(spec.Comment{Text: text, Position: spec.After})
		case next != nil:
			next.addComment(spec.Comment{Text: text, Position: spec.Before})
		default:
			s.owner.addComment(spec.Comment{Text: text, Position: spec.After})
		}
	}
}
