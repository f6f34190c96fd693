package util

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/token"
)

// SourceFileRecord tracks the name and content of the file being compiled
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFile *SourceFileRecord

// SetSourceFile stores the source being compiled for rich error messages
func SetSourceFile(rec SourceFileRecord) {
	sourceFile = &rec
}

func fileName() string {
	if sourceFile == nil || sourceFile.Name == "" {
		return "<input>"
	}
	return sourceFile.Name
}

// printErrorLine prints the source line and a caret indicating the error position
func printErrorLine(w io.Writer, tok token.Token) {
	if sourceFile == nil || tok.Line == 0 {
		return
	}

	content := sourceFile.Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	fmt.Fprintf(w, "  %s\033[32m^", strings.Repeat(" ", max(tok.Column-1, 0)))
	if tok.Len > 1 {
		fmt.Fprintf(w, "%s", strings.Repeat("~", tok.Len-1))
	}
	fmt.Fprintln(w, "\033[0m")
}

// Report prints err to w. Compile diagnostics get a location prefix and the
// offending source line; anything else is printed as a plain driver error.
func Report(w io.Writer, err error) {
	if err == nil {
		return
	}
	var d *Diagnostic
	if !errors.As(err, &d) {
		fmt.Fprintf(w, "gsc: \033[31merror:\033[0m %v\n", err)
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: \033[31m%s:\033[0m %s\n", fileName(), d.Tok.Line, d.Tok.Column, d.Kind, d.Msg)
	printErrorLine(w, d.Tok)
}

// Warning is a non-fatal finding recorded during compilation
type Warning struct {
	Flag config.Warning
	Tok  token.Token
	Msg  string
}

// Warn prints a formatted warning if the corresponding warning is enabled
func Warn(w io.Writer, cfg *config.Config, warn Warning) {
	if !cfg.IsWarningEnabled(warn.Flag) {
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: \033[33mwarning:\033[0m %s [-W%s]\n", fileName(), warn.Tok.Line, warn.Tok.Column, warn.Msg, cfg.Warnings[warn.Flag].Name)
	printErrorLine(w, warn.Tok)
}
