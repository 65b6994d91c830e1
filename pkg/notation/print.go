package notation

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/RigiResearch/middleware-sub001/pkg/spec"
)

// Print renders s as canonical source text. Orphan comments lead the
// document, resources follow in canonical order separated by blank lines,
// and every comment is written next to the element it annotates. The output
// is run through the HCL formatter so indentation and alignment are stable.
func Print(s *spec.Specification) ([]byte, error) {
	pr := &printer{}
	for _, c := range s.OrphanComments() {
		pr.lines(c.Text)
		pr.buf.WriteString("\n")
	}
	for i, r := range s.Resources() {
		if i > 0 {
			pr.buf.WriteString("\n")
		}
		if err := pr.resource(r); err != nil {
			return nil, err
		}
	}
	return hclwrite.Format(pr.buf.Bytes()), nil
}

type printer struct {
	buf bytes.Buffer
}

func (pr *printer) lines(text string) {
	for _, line := range strings.Split(text, "\n") {
		pr.buf.WriteString(line)
		pr.buf.WriteString("\n")
	}
}

func (pr *printer) before(c *spec.Comment) {
	if c == nil {
		return
	}
	if c.Position == spec.Before || (c.Position == spec.Inline && !inlineable(c)) {
		pr.lines(c.Text)
	}
}

// closeLine ends the current line, appending an inline comment if there is one.
func (pr *printer) closeLine(c *spec.Comment) {
	if c != nil && c.Position == spec.Inline && inlineable(c) {
		pr.buf.WriteString(" ")
		pr.buf.WriteString(c.Text)
	}
	pr.buf.WriteString("\n")
}

func (pr *printer) after(c *spec.Comment) {
	if c != nil && c.Position == spec.After {
		pr.lines(c.Text)
	}
}

func inlineable(c *spec.Comment) bool {
	return !strings.Contains(c.Text, "\n")
}

func (pr *printer) resource(r spec.Resource) error {
	pr.before(r.Comment)
	pr.buf.WriteString(r.Specifier)
	for _, label := range []string{r.Type, r.Name} {
		if label != "" {
			pr.buf.WriteString(" ")
			pr.buf.WriteString(quote(label))
		}
	}
	pr.buf.WriteString(" {\n")
	if err := pr.body(spec.QualifiedName(r), r.Attributes); err != nil {
		return err
	}
	pr.buf.WriteString("}")
	pr.closeLine(r.Comment)
	pr.after(r.Comment)
	return nil
}

func (pr *printer) body(path string, attrs []spec.Attribute) error {
	for i, attr := range attrs {
		if err := pr.attribute(path+"."+attr.Name, attr); err != nil {
			return err
		}
		// A detached comment directly above the next sibling would bind to it.
		if attr.Comment != nil && attr.Comment.Position == spec.After && i < len(attrs)-1 {
			pr.buf.WriteString("\n")
		}
	}
	return nil
}

func (pr *printer) attribute(path string, attr spec.Attribute) error {
	switch v := attr.Value.(type) {
	case spec.Block:
		pr.before(attr.Comment)
		if err := pr.block(path, attr.Name, v); err != nil {
			return err
		}
		pr.closeLine(attr.Comment)
		pr.after(attr.Comment)
		return nil
	case spec.List:
		if hasBlocks(v) {
			return pr.repeated(path, attr, v)
		}
	}

	expr, err := expression(path, attr.Value)
	if err != nil {
		return err
	}
	comment := attr.Comment
	if comment != nil && comment.Position == spec.Inline && strings.Contains(expr, "\n") {
		if _, scalar := attr.Value.(spec.Scalar); scalar {
			comment = &spec.Comment{Text: comment.Text, Position: spec.Before}
		}
	}
	pr.before(comment)
	pr.buf.WriteString(attr.Name)
	pr.buf.WriteString(" = ")
	pr.buf.WriteString(expr)
	pr.closeLine(comment)
	pr.after(comment)
	return nil
}

// repeated writes a list of blocks as consecutive blocks of the same type.
func (pr *printer) repeated(path string, attr spec.Attribute, list spec.List) error {
	for i, item := range list {
		b, ok := item.(spec.Block)
		if !ok {
			return &PrintError{Path: fmt.Sprintf("%s[%d]", path, i), Message: "list mixes blocks with other values"}
		}
		if i == 0 {
			pr.before(attr.Comment)
		}
		if err := pr.block(fmt.Sprintf("%s[%d]", path, i), attr.Name, b); err != nil {
			return err
		}
		if i == len(list)-1 {
			pr.closeLine(attr.Comment)
			pr.after(attr.Comment)
		} else {
			pr.buf.WriteString("\n")
		}
	}
	return nil
}

// block writes a nested block up to and including its closing brace.
func (pr *printer) block(path, name string, b spec.Block) error {
	pr.buf.WriteString(name)
	for _, label := range b.Labels {
		pr.buf.WriteString(" ")
		pr.buf.WriteString(quote(label))
	}
	pr.buf.WriteString(" {\n")
	if err := pr.body(path, b.Attributes); err != nil {
		return err
	}
	pr.buf.WriteString("}")
	return nil
}

// FormatValue renders v as an expression. Blocks have no expression form.
func FormatValue(v spec.Value) (string, error) {
	return expression("value", v)
}

func expression(path string, v spec.Value) (string, error) {
	switch v := v.(type) {
	case spec.Scalar:
		return string(v), nil
	case spec.List:
		parts := make([]string, len(v))
		for i, item := range v {
			s, err := expression(fmt.Sprintf("%s[%d]", path, i), item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case spec.Map:
		if len(v) == 0 {
			return "{}", nil
		}
		var sb strings.Builder
		sb.WriteString("{\n")
		for _, entry := range v {
			s, err := expression(path+"."+entry.Key, entry.Value)
			if err != nil {
				return "", err
			}
			sb.WriteString(entry.Key)
			sb.WriteString(" = ")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
		sb.WriteString("}")
		return sb.String(), nil
	case spec.Block:
		return "", &PrintError{Path: path, Message: "block cannot appear inside an expression"}
	case nil:
		return "", &PrintError{Path: path, Message: "missing value"}
	default:
		return "", &PrintError{Path: path, Message: fmt.Sprintf("unsupported value %T", v)}
	}
}

func hasBlocks(list spec.List) bool {
	for _, item := range list {
		if _, ok := item.(spec.Block); ok {
			return true
		}
	}
	return false
}

func quote(label string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(label) + `"`
}
