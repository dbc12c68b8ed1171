package config

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SearchForConfig looks for filename in startDir and each of its ancestors,
// returning the first path that exists or "" when the filesystem root is
// reached without a match.
func SearchForConfig(filename string, startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// TransformEnv converts TH__AUTH__TELEGRAM__BOT_TOKEN to
// auth.telegram.botToken. Environment variable transformation rules:
//   - Remove TH__ prefix
//   - Convert to lowercase
//   - Double underscores (__) become dots (.)
//   - Single underscores (_) within segments become camelCase
func TransformEnv(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, "TH__"))
	segments := strings.Split(name, "__")
	for i, segment := range segments {
		segments[i] = camelCase(segment)
	}
	return strings.Join(segments, ".")
}

// camelCase joins underscore-separated words, uppercasing the first rune of
// every word after the first.
func camelCase(s string) string {
	words := strings.Split(s, "_")
	for i := 1; i < len(words); i++ {
		if words[i] == "" {
			continue
		}
		r := []rune(words[i])
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, "")
}
