package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath validates that a file path is safe and doesn't contain
// directory traversal attempts.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	return nil
}

// ValidateFileName validates a single path component, as used for exported
// asset and archive names served over HTTP. Separators and traversal
// sequences are rejected outright.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}

	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("file name contains path separator: %s", name)
	}

	if name == "." || name == ".." || strings.Contains(name, "..") {
		return fmt.Errorf("file name contains traversal sequence: %s", name)
	}

	return nil
}

// ValidateFilePathWithBase validates a relative file path against a base
// directory, ensuring the resolved path cannot escape it.
func ValidateFilePathWithBase(path, baseDir string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}

	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths not allowed: %s", path)
	}

	fullPath := filepath.Clean(filepath.Join(baseDir, path))
	cleanBase := filepath.Clean(baseDir)

	if fullPath != cleanBase && !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}

	return nil
}

// SanitizeFileName strips characters that are unsafe in asset file names,
// keeping the original display name recognizable in the export. Attachment
// names come from the upstream API and may contain anything.
func SanitizeFileName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"\x00", "",
	)
	sanitized := strings.TrimSpace(replacer.Replace(name))
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		return "file"
	}
	return sanitized
}
