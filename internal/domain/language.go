package domain

import (
	"path/filepath"
	"strings"
)

// languagesByExtension maps file extensions to the language name used by
// the optimization backends. Unlisted extensions yield an empty language
// and the file's content is never fetched.
var languagesByExtension = map[string]string{
	".py":    "python",
	".go":    "go",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rb":    "ruby",
	".java":  "java",
	".kt":    "kotlin",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
}

// DetectLanguage returns the language for a filename based on its
// extension, or an empty string when the extension is unrecognized.
func DetectLanguage(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return languagesByExtension[ext]
}

// LanguageSupported reports whether filename belongs to a language the
// optimization backends can process.
func LanguageSupported(filename string) bool {
	return DetectLanguage(filename) != ""
}
