package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func newTestFlagSet() (*FlagSet, *string, *bool) {
	fs := NewFlagSet("test")
	var out string
	var dump bool
	fs.String(&out, "output", "o", "out", "Output file.", "file")
	fs.Bool(&dump, "dump-ir", "d", false, "Dump.")
	return fs, &out, &dump
}

func TestParseForms(t *testing.T) {
	tests := []struct {
		name string
		args []string
		out  string
		dump bool
		rest []string
	}{
		{"defaults", []string{"a.gs"}, "out", false, []string{"a.gs"}},
		{"long separate", []string{"--output", "prog", "a.gs"}, "prog", false, []string{"a.gs"}},
		{"long equals", []string{"--output=prog", "a.gs"}, "prog", false, []string{"a.gs"}},
		{"single dash long", []string{"-output", "prog", "a.gs"}, "prog", false, []string{"a.gs"}},
		{"short separate", []string{"-o", "prog", "a.gs"}, "prog", false, []string{"a.gs"}},
		{"short glued", []string{"-oprog", "a.gs"}, "prog", false, []string{"a.gs"}},
		{"bool short", []string{"-d", "a.gs"}, "out", true, []string{"a.gs"}},
		{"bool explicit", []string{"--dump-ir=false", "a.gs"}, "out", false, []string{"a.gs"}},
		{"flags after args", []string{"a.gs", "-d"}, "out", true, []string{"a.gs"}},
		{"terminator", []string{"--", "-d"}, "out", false, []string{"-d"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fs, out, dump := newTestFlagSet()
			be.Err(t, fs.Parse(test.args), nil)
			be.Equal(t, *out, test.out)
			be.Equal(t, *dump, test.dump)
			be.Equal(t, fs.Args(), test.rest)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		args []string
		msg  string
	}{
		{[]string{"--nope"}, "unknown flag"},
		{[]string{"-x"}, "unknown flag"},
		{[]string{"-o"}, "flag needs an argument"},
		{[]string{"--dump-ir=maybe"}, "invalid boolean value"},
	}
	for _, test := range tests {
		fs, _, _ := newTestFlagSet()
		err := fs.Parse(test.args)
		be.True(t, err != nil)
		be.True(t, strings.Contains(err.Error(), test.msg))
	}
}

func TestFlagGroup(t *testing.T) {
	fs := NewFlagSet("test")
	entries := []FlagGroupEntry{
		{Name: "unused-var", Prefix: "W", Usage: "Unused.", Default: true, Enabled: new(bool), Disabled: new(bool)},
	}
	fs.AddFlagGroup("Warning Flags", "Control compiler warnings.", "warning", "Available Warning Flags:", entries)

	be.Err(t, fs.Parse([]string{"-Wno-unused-var"}), nil)
	be.True(t, !*entries[0].Enabled)
	be.True(t, *entries[0].Disabled)
	be.True(t, fs.Lookup("Wunused-var") != nil)
}

func TestAppRunChecksArgCount(t *testing.T) {
	app := NewApp("test")
	app.NArgs = 1
	called := false
	app.Action = func(args []string) error {
		called = true
		return nil
	}

	err := app.Run([]string{})
	be.True(t, errors.Is(err, ErrUsage))
	be.True(t, !called)
}

func TestAppRunPassesArgs(t *testing.T) {
	app := NewApp("test")
	app.NArgs = 1
	var got []string
	app.Action = func(args []string) error {
		got = args
		return nil
	}
	be.Err(t, app.Run([]string{"in.gs"}), nil)
	be.Equal(t, got, []string{"in.gs"})
}

func TestAppRunBadFlag(t *testing.T) {
	app := NewApp("test")
	err := app.Run([]string{"--bogus"})
	be.True(t, errors.Is(err, ErrUsage))
}

func TestHelpPage(t *testing.T) {
	app := NewApp("gsc")
	app.Synopsis = "[options] <input.gs>"
	app.Description = "A compiler."
	var out string
	app.FlagSet.String(&out, "output", "o", "out", "Place the executable into <file>.", "file")
	entries := []FlagGroupEntry{{Name: "unused-var", Prefix: "W", Usage: "Unused.", Default: true, Enabled: new(bool), Disabled: new(bool)}}
	app.FlagSet.AddFlagGroup("Warning Flags", "", "warning", "Available Warning Flags:", entries)

	var sb strings.Builder
	app.generateHelpPage(&sb)
	page := sb.String()
	be.True(t, strings.Contains(page, "gsc [options] <input.gs>"))
	be.True(t, strings.Contains(page, "-o, --output <file>"))
	be.True(t, strings.Contains(page, "|out|"))
	be.True(t, strings.Contains(page, "-W<warning>"))
	be.True(t, strings.Contains(page, "|x|"))
	// group members are listed under their group, not as options
	be.True(t, !strings.Contains(page, "--Wunused-var"))
}

func TestWrapText(t *testing.T) {
	be.Equal(t, wrapText("a bb ccc dddd", 6), []string{"a bb", "ccc", "dddd"})
	be.Equal(t, wrapText("", 10), []string{})
	be.Equal(t, wrapText("word", 0), []string{"word"})
}
