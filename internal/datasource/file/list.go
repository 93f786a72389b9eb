package file

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvalverde/PAAA/internal/logging"
)

// ReadList reads a load manifest (`etl load --list manifest.txt`). See
// ParseList for the format; relative paths resolve against the manifest's
// own directory so a manifest can travel with its spreadsheets.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file: open list %s: %w", path, err)
	}
	defer f.Close()

	out, err := ParseList(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("file: read list %s: %w", path, err)
	}
	return out, nil
}

// ParseList returns one locator per line in file order. Blank lines, lines
// starting with '#' and trailing " # ..." notes are ignored. Relative paths
// are joined to base; "~/" expands to the home directory; locators with a
// scheme ("s3://", "https://") are kept verbatim. A locator listed twice is
// loaded once.
func ParseList(r io.Reader, base string) ([]string, error) {
	var (
		out  []string
		seen = map[string]int{}
	)
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.Contains(line, "://"):
		case strings.HasPrefix(line, "~"):
			line = expandHome(line)
		case !filepath.IsAbs(line):
			line = filepath.Join(base, line)
		}
		if first, dup := seen[line]; dup {
			logging.Warn().Str("locator", line).Int("line", n).Int("first", first).Msg("list: duplicate entry skipped")
			continue
		}
		seen[line] = n
		out = append(out, line)
	}
	return out, sc.Err()
}
