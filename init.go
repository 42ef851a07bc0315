package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/ngaot/internal/config"
)

const (
	sentinelStart = "# ngaot:start"
	sentinelEnd   = "# ngaot:end"
)

// runInit implements the `ngaot init` subcommand, which writes (or updates)
// a block in a .gitignore file that keeps generated factories out of version
// control.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ngaot init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		dryRun bool
		genDir string
	)
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	fs.StringVar(&genDir, "gen-dir", config.DefaultGenDir, "generation dir, relative to the .gitignore")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: ngaot init [flags] [path-to-.gitignore]

Write an ngaot block to a .gitignore file. The block is wrapped in sentinel
comments so it can be updated in place on subsequent runs without touching
surrounding content. Creates the file if it does not exist.

path-to-.gitignore defaults to ./.gitignore.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	section := generateSection(genDir)

	// --dry-run with no path: just print the section itself.
	if dryRun && fs.NArg() == 0 {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := ".gitignore"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	existing, _ := os.ReadFile(path)
	updated := applySection(string(existing), section)

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote ngaot block to %s\n", path)
	return nil
}

// generateSection returns the sentinel-wrapped ignore block for genDir.
func generateSection(genDir string) string {
	dir := "/" + strings.Trim(filepath.ToSlash(filepath.Clean(genDir)), "/") + "/"
	body := `# Generated by ngaot; rebuild with ` + "`ngaot`" + `, see ` + "`ngaot --help`" + `.
` + dir + `
*.ngsummary.json`

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
