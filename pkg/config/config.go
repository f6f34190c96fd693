package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/xplshn/gsc/pkg/cli"
	"modernc.org/libqbe"
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnUnusedVar
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Warnings      map[Warning]Info
	WarningMap    map[string]Warning
	BackendName   string
	BackendTarget string
	GOOS          string
	GOARCH        string
	WordSize      int
	WordType      string
}

func NewConfig() *Config {
	cfg := &Config{
		Warnings:      make(map[Warning]Info),
		WarningMap:    make(map[string]Warning),
		BackendName:   "nasm",
		BackendTarget: "elf64",
		WordSize:      8,
		WordType:      "l",
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements that follow an exit."},
		WarnUnusedVar:       {"unused-var", true, "Warn about variables that are declared but never read."},
	}

	cfg.Warnings = warnings
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget selects the backend and its target from a "backend[/target]" string.
// An empty qbe target falls back to the host's default.
func (c *Config) SetTarget(goos, goarch, target string) error {
	c.GOOS, c.GOARCH = goos, goarch

	backend, sub, _ := strings.Cut(target, "/")
	if backend == "" {
		backend = "nasm"
	}

	switch backend {
	case "nasm":
		if sub != "" && sub != "elf64" {
			return fmt.Errorf("unsupported nasm target '%s'. Supported: 'elf64'", sub)
		}
		c.BackendName, c.BackendTarget = "nasm", "elf64"
		if goos != "linux" || goarch != "amd64" {
			fmt.Fprintf(os.Stderr, "gsc: warning: nasm backend emits linux/amd64 code, host is %s/%s\n", goos, goarch)
		}
	case "qbe":
		c.BackendName = "qbe"
		if sub == "" {
			c.BackendTarget = libqbe.DefaultTarget(goos, goarch)
			fmt.Fprintf(os.Stderr, "gsc: info: no target specified, defaulting to host target '%s'\n", c.BackendTarget)
		} else {
			c.BackendTarget = sub
			fmt.Fprintf(os.Stderr, "gsc: info: using specified target '%s'\n", c.BackendTarget)
		}
		switch c.BackendTarget {
		case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		default:
			return fmt.Errorf("unsupported QBE target '%s'", c.BackendTarget)
		}
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'nasm', 'qbe'", backend)
	}

	c.WordSize, c.WordType = 8, "l"
	return nil
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

func (c *Config) SetAllWarnings(enabled bool) {
	for i := Warning(0); i < WarnCount; i++ {
		c.SetWarning(i, enabled)
	}
}

// SetupFlagGroups registers -W<name> and -Wno-<name> for every warning
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) []cli.FlagGroupEntry {
	entries := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		entries[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Default:  info.Enabled,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
	}
	fs.AddFlagGroup("Warning Flags", "Control compiler warnings.", "warning", "Available Warning Flags:", entries)
	return entries
}

// ApplyWarningFlags applies -Wall/-Wno-all first, then the individual flags
func (c *Config) ApplyWarningFlags(entries []cli.FlagGroupEntry, all, none bool) {
	if all {
		c.SetAllWarnings(true)
	}
	if none {
		c.SetAllWarnings(false)
	}
	for i, entry := range entries {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
}
