// Package parser reads an import-plan markdown document into the ordered
// task specs the Task Board needs to create Tasks from (spec's import-plan
// command), grounded on the teacher's goldmark-based plan parser but
// reduced to the grammar this system actually uses: headings introduce
// groups, top-level bullets under a heading become task objectives, and a
// trailing `depends: N, M` annotation on a bullet names the 1-based
// objective indices (within the whole document) it depends on.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// dependsPattern matches a trailing "depends: 1, 2" annotation on a bullet.
var dependsPattern = regexp.MustCompile(`(?i)\(?depends:\s*([0-9]+(?:\s*,\s*[0-9]+)*)\)?\s*$`)

// ImportedTask is one task objective parsed out of an import-plan document,
// in document order. DependsOn holds other ImportedTask.Index values.
type ImportedTask struct {
	Index     int
	Group     string
	Objective string
	DependsOn []int
}

// MarkdownParser parses import-plan documents via goldmark.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser constructs a MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{markdown: goldmark.New()}
}

// Parse walks source's markdown AST and returns one ImportedTask per
// top-level bullet found under any heading, in document order.
func (p *MarkdownParser) Parse(source []byte) ([]ImportedTask, error) {
	doc := p.markdown.Parser().Parse(text.NewReader(source))

	var tasks []ImportedTask
	currentGroup := ""

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if heading, ok := n.(*ast.Heading); ok {
			currentGroup = extractText(heading, source)
			return ast.WalkContinue, nil
		}

		if list, ok := n.(*ast.List); ok {
			for item := list.FirstChild(); item != nil; item = item.NextSibling() {
				line := strings.TrimSpace(extractText(item, source))
				if line == "" {
					continue
				}
				objective, deps := splitDepends(line)
				tasks = append(tasks, ImportedTask{
					Index:     len(tasks) + 1,
					Group:     currentGroup,
					Objective: objective,
					DependsOn: deps,
				})
			}
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk plan document: %w", err)
	}

	return tasks, nil
}

func splitDepends(line string) (string, []int) {
	m := dependsPattern.FindStringSubmatchIndex(line)
	if m == nil {
		return line, nil
	}
	objective := strings.TrimSpace(line[:m[0]])
	rawDeps := line[m[2]:m[3]]
	var deps []int
	for _, part := range strings.Split(rawDeps, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err == nil {
			deps = append(deps, n)
		}
	}
	return objective, deps
}

// extractText concatenates the raw source text of every text-bearing leaf
// under n, collapsing soft line breaks to spaces.
func extractText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() {
				b.WriteByte(' ')
			}
		default:
			b.WriteString(extractText(c, source))
		}
	}
	return b.String()
}
