package localtree

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/storagebrowser/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFile is read from the root of an uploaded directory.
const IgnoreFile = ".storagebrowserignore"

var defaultIgnoreLines = []string{
	IgnoreFile,
	// editors
	".vscode",
	".idea",
	"*.swp",
	// general excludes
	".git",
	"*.tmp",
	"__pycache__/",
	"node_modules/",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// IgnoreList decides which local paths a directory upload skips. Paths are
// relative to the base dir, slash separated.
type IgnoreList struct {
	baseDir  string
	ignore   *gitignore.GitIgnore
	excludes []string
}

func NewIgnoreList(baseDir string, excludes ...string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir, excludes: excludes}
}

// Load compiles the defaults together with the ignore file, if present.
func (l *IgnoreList) Load() {
	lines := append([]string{}, defaultIgnoreLines...)

	ignorePath := filepath.Join(l.baseDir, IgnoreFile)
	if utils.FileExists(ignorePath) {
		extra, err := readLines(ignorePath)
		if err != nil {
			slog.Warn("ignore file unreadable", "path", ignorePath, "error", err)
		} else {
			slog.Debug("loaded ignore file", "path", ignorePath, "rules", len(extra))
			lines = append(lines, extra...)
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore matches rel against the gitignore rules and the exclude globs.
func (l *IgnoreList) ShouldIgnore(rel string, isDir bool) bool {
	if l.ignore == nil {
		l.Load()
	}

	rel = filepath.ToSlash(rel)
	if l.ignore.MatchesPath(rel) || (isDir && l.ignore.MatchesPath(rel+"/")) {
		return true
	}

	for _, pattern := range l.excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
