// Package notation converts between HCL-style source text and the
// specification model, keeping comments attached to the elements they
// annotate.
package notation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/RigiResearch/middleware-sub001/pkg/spec"
)

// item is a parsed attribute or block awaiting its comments.
type item struct {
	attr    *hclsyntax.Attribute
	block   *hclsyntax.Block
	start   hcl.Pos
	end     hcl.Pos
	body    *scope
	comment *spec.Comment
}

// scope is the interior of the file or of a block body.
type scope struct {
	owner *item
	open  hcl.Pos
	close hcl.Pos
	items []*item
}

type parser struct {
	src      []byte
	filename string
	orphans  []spec.Comment
}

// Parse reads source text into a Specification. Top-level blocks become
// resources: `specifier "type" "name" { ... }`, with zero to two labels.
func Parse(src []byte, filename string) (*spec.Specification, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diagnosticError(diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, &ParseError{Message: "unsupported document body", Position: Position{Filename: filename, Line: 1, Column: 1}}
	}

	p := &parser{src: src, filename: filename}
	if err := p.rejectTopLevelAttributes(body); err != nil {
		return nil, err
	}

	root := &scope{open: body.SrcRange.Start, close: body.SrcRange.End}
	root.items = p.collect(body)

	tokens, _ := hclsyntax.LexConfig(src, filename, hcl.InitialPos)
	p.attach(root, collectComments(tokens))

	resources := make([]spec.Resource, 0, len(root.items))
	for _, it := range root.items {
		r, err := p.resource(it)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return spec.New(resources, p.orphans)
}

func diagnosticError(diags hcl.Diagnostics) error {
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += "; " + d.Detail
		}
		perr := &ParseError{Message: msg}
		if d.Subject != nil {
			perr.Position = Position{Filename: d.Subject.Filename, Line: d.Subject.Start.Line, Column: d.Subject.Start.Column}
		}
		return perr
	}
	return &ParseError{Message: diags.Error()}
}

func (p *parser) rejectTopLevelAttributes(body *hclsyntax.Body) error {
	if len(body.Attributes) == 0 {
		return nil
	}
	var first *hclsyntax.Attribute
	for _, attr := range body.Attributes {
		if first == nil || attr.SrcRange.Start.Byte < first.SrcRange.Start.Byte {
			first = attr
		}
	}
	return &ParseError{
		Message:  fmt.Sprintf("attribute %q is not allowed outside a block", first.Name),
		Position: p.position(first.SrcRange.Start),
	}
}

func (p *parser) position(pos hcl.Pos) Position {
	return Position{Filename: p.filename, Line: pos.Line, Column: pos.Column}
}

// collect lists the attributes and blocks of a body in source order.
func (p *parser) collect(body *hclsyntax.Body) []*item {
	items := make([]*item, 0, len(body.Attributes)+len(body.Blocks))
	for _, attr := range body.Attributes {
		items = append(items, &item{attr: attr, start: attr.SrcRange.Start, end: attr.SrcRange.End})
	}
	for _, block := range body.Blocks {
		it := &item{block: block, start: block.TypeRange.Start, end: block.CloseBraceRange.End}
		it.body = &scope{owner: it, open: block.OpenBraceRange.End, close: block.CloseBraceRange.Start}
		it.body.items = p.collect(block.Body)
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].start.Byte < items[j].start.Byte })
	return items
}

func (p *parser) text(r hcl.Range) string {
	return string(r.SliceBytes(p.src))
}

func (p *parser) resource(it *item) (spec.Resource, error) {
	block := it.block
	r := spec.Resource{Specifier: block.Type, Comment: it.comment}
	switch len(block.Labels) {
	case 0:
	case 1:
		r.Name = block.Labels[0]
	case 2:
		r.Type = block.Labels[0]
		r.Name = block.Labels[1]
	default:
		return spec.Resource{}, &ParseError{
			Message:  fmt.Sprintf("block %q has %d labels; at most two are supported", block.Type, len(block.Labels)),
			Position: p.position(block.LabelRanges[2].Start),
		}
	}
	r.Attributes = p.attributes(it.body)
	return r, nil
}

// attributes converts a block body. Repeated nested blocks of the same type
// fold into one List attribute at the position of the first occurrence.
func (p *parser) attributes(s *scope) []spec.Attribute {
	out := make([]spec.Attribute, 0, len(s.items))
	repeated := map[string]int{}
	for _, it := range s.items {
		if it.attr != nil {
			out = append(out, spec.Attribute{Name: it.attr.Name, Value: p.value(it.attr.Expr), Comment: it.comment})
			continue
		}
		block := spec.Block{Labels: append([]string(nil), it.block.Labels...), Attributes: p.attributes(it.body)}
		i, seen := repeated[it.block.Type]
		if !seen {
			repeated[it.block.Type] = len(out)
			out = append(out, spec.Attribute{Name: it.block.Type, Value: block, Comment: it.comment})
			continue
		}
		existing := &out[i]
		switch v := existing.Value.(type) {
		case spec.Block:
			existing.Value = spec.List{v, block}
		case spec.List:
			existing.Value = append(v, block)
		}
		if it.comment != nil {
			existing.Comment = fold(existing.Comment, *it.comment)
		}
	}
	return out
}

func (p *parser) value(expr hclsyntax.Expression) spec.Value {
	switch e := expr.(type) {
	case *hclsyntax.TupleConsExpr:
		list := make(spec.List, len(e.Exprs))
		for i, elem := range e.Exprs {
			list[i] = p.value(elem)
		}
		return list
	case *hclsyntax.ObjectConsExpr:
		m := make(spec.Map, len(e.Items))
		for i, entry := range e.Items {
			m[i] = spec.MapEntry{
				Key:   strings.TrimSpace(p.text(entry.KeyExpr.Range())),
				Value: p.value(entry.ValueExpr),
			}
		}
		return m
	default:
		return spec.Scalar(strings.TrimSpace(p.text(expr.Range())))
	}
}
