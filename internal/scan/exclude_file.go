package scan

import (
	"bufio"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExcludeFileName is the exclude file looked for in the run root (like .gitignore).
const DefaultExcludeFileName = ".crcsumignore"

//go:embed default.crcsumignore
var defaultExcludeContent string

// DefaultExcludePatterns returns the patterns from the embedded default.crcsumignore.
func DefaultExcludePatterns() []string {
	return parsePatterns(bufio.NewScanner(strings.NewReader(defaultExcludeContent)))
}

func parsePatterns(s *bufio.Scanner) []string {
	var patterns []string
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// LoadExcludeFile reads path and returns one pattern per non-empty, non-comment
// line. A missing file returns nil, nil.
func LoadExcludeFile(path string) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- exclude file inside the operator's run root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	patterns := parsePatterns(s)
	if err := s.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// ExcludeFileInRoot returns root/.crcsumignore.
func ExcludeFileInRoot(root string) string {
	return filepath.Join(filepath.Clean(root), DefaultExcludeFileName)
}

// PatternsForRoot returns the default patterns merged with root/.crcsumignore
// if it exists. When root is a file, only the defaults apply.
func PatternsForRoot(root string) ([]string, error) {
	patterns := DefaultExcludePatterns()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return patterns, nil
	}
	rootPatterns, err := LoadExcludeFile(ExcludeFileInRoot(root))
	if err != nil {
		return nil, err
	}
	return append(patterns, rootPatterns...), nil
}
