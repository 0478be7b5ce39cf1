package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/vamdeps/internal/discover"
)

const (
	sentinelStart = "# vamdeps:start"
	sentinelEnd   = "# vamdeps:end"
)

// runInit implements the `vamdeps init` subcommand, which writes (or updates)
// a managed block of default patterns in a content root's .assetignore.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("vamdeps init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: vamdeps init [flags] [content-dir]

Write the default vamdeps ignore patterns to <content-dir>/%s. The block is
wrapped in sentinel comments so it can be updated in place on subsequent runs
without touching patterns you added yourself. Creates the file if it does not
exist.

content-dir defaults to the current directory.

Flags:
`, discover.IgnoreFile)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	section := generateSection()

	// --dry-run with no dir: just print the section itself.
	if dryRun && fs.NArg() == 0 {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	if info, err := os.Stat(dir); err != nil {
		return fmt.Errorf("content dir: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", dir)
	}
	path := filepath.Join(dir, discover.IgnoreFile)

	existing, _ := os.ReadFile(path)
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote vamdeps ignore patterns to %s\n", path)
	return nil
}

// generateSection returns the sentinel-wrapped block of default patterns.
func generateSection() string {
	body := `# Managed by "vamdeps init"; lines between the markers are replaced on
# every run. Add your own patterns outside the block. Paths are relative to
# the content directory; see "vamdeps --help" for flags.
*.tmp
*.bak
*.orig
Saves/PluginData/
Saves/screenshots/
Custom/Scripts/**/*.cs.disabled`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
