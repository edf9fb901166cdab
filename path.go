package fatx

import (
	"strings"

	"github.com/xboxfatx/fatx/checkpoint"
)

// forbiddenNameChars are the characters the FATX name rules exclude
// outright.
const forbiddenNameChars = `><=?:;"*+,/\|`

// validateName checks a candidate dirent name against §4.3: length in
// [1, 42], containing none of the forbidden characters.
func validateName(name string) error {
	if len(name) < 1 || len(name) > 42 {
		return checkpoint.From(ErrInvalidName)
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return checkpoint.From(ErrInvalidName)
	}
	return nil
}

// normalizePath replaces every '/' with '\', trims a single
// leading/trailing separator, and maps both "" and "\" to root ("").
func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "/", `\`)
	path = strings.TrimPrefix(path, `\`)
	path = strings.TrimSuffix(path, `\`)
	return path
}

// splitPath breaks a normalized path into its non-empty components.
func splitPath(path string) []string {
	path = normalizePath(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, `\`)
}
