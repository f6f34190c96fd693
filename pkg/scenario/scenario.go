// Package scenario reads compiler test cases out of Markdown documents.
//
// A case starts at any heading of the form "Test: <name>" and collects the
// fenced code blocks that follow it: exactly one `gs` fence holding the
// program, and one or more expectation fences (`ast`, `exit`, `compile-error`).
package scenario

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	FenceSource = "gs"

	FenceAST          = "ast"
	FenceExit         = "exit"
	FenceCompileError = "compile-error"
)

// Case is one scenario. Unset expectations are nil.
type Case struct {
	Name   string
	Line   int
	Source string

	// AST is the expected s-expression of the parsed program
	AST *string
	// Exit is the expected process exit status
	Exit *int
	// CompileError is a substring the compile error must contain
	CompileError *string
}

// Extract parses markdown and returns its cases in document order
func Extract(markdown []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var cases []Case
	var cur *Case
	hasSource := false

	flush := func() error {
		if cur == nil {
			return nil
		}
		if !hasSource {
			return fmt.Errorf("line %d: test '%s' has no %s fence", cur.Line, cur.Name, FenceSource)
		}
		if cur.AST == nil && cur.Exit == nil && cur.CompileError == nil {
			return fmt.Errorf("line %d: test '%s' has no expectation fences", cur.Line, cur.Name)
		}
		if cur.CompileError != nil && cur.Exit != nil {
			return fmt.Errorf("line %d: test '%s' expects both an exit status and a compile error", cur.Line, cur.Name)
		}
		cases = append(cases, *cur)
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := headingText(n, markdown)
			name, ok := strings.CutPrefix(heading, "Test: ")
			if !ok {
				return ast.WalkContinue, nil
			}
			if err := flush(); err != nil {
				return ast.WalkStop, err
			}
			cur = &Case{Name: strings.TrimSpace(name), Line: lineOf(n, markdown)}
			hasSource = false
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			lang := string(n.Language(markdown))
			line := lineOf(n, markdown)
			if cur == nil {
				if lang == "" {
					return ast.WalkContinue, nil
				}
				return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of a test", line, lang)
			}

			content := strings.TrimRight(fenceContent(n, markdown), "\n")
			switch lang {
			case FenceSource:
				if hasSource {
					return ast.WalkStop, fmt.Errorf("line %d: multiple %s fences in test '%s'", line, FenceSource, cur.Name)
				}
				cur.Source = content
				hasSource = true
			case FenceAST:
				cur.AST = &content
			case FenceExit:
				status, err := strconv.Atoi(strings.TrimSpace(content))
				if err != nil {
					return ast.WalkStop, fmt.Errorf("line %d: bad exit status in test '%s': %w", line, cur.Name, err)
				}
				cur.Exit = &status
			case FenceCompileError:
				cur.CompileError = &content
			case "":
			default:
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", line, lang, cur.Name)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cases, nil
}

func headingText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

// lineOf returns the 1-based line of node's first segment. Headings and fences
// report the line of their content.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	return bytes.Count(source[:min(start, len(source))], []byte("\n")) + 1
}
