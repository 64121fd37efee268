package models

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Slug length limits
const (
	SlugMinLength = 5
	SlugMaxLength = 50
)

// Sentinel validation errors. Wrapped by *ValidationError.
var (
	ErrInvalidSlug   = errors.New("invalid slug")
	ErrInvalidName   = errors.New("invalid project name")
	ErrInvalidFolder = errors.New("invalid folder")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidationError describes input rejected before any network call.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateSlug checks the slug rules: lowercase, 5-50 chars of
// [a-z0-9-], no leading or trailing hyphen.
func ValidateSlug(s string) error {
	fail := func(reason string) error {
		return &ValidationError{Field: "slug", Value: s, Reason: reason, Err: ErrInvalidSlug}
	}
	if s != strings.ToLower(s) {
		return fail("must be lowercase")
	}
	if len(s) < SlugMinLength {
		return fail(fmt.Sprintf("must be at least %d characters", SlugMinLength))
	}
	if len(s) > SlugMaxLength {
		return fail(fmt.Sprintf("must be at most %d characters", SlugMaxLength))
	}
	if !slugPattern.MatchString(s) {
		return fail("may only contain a-z, 0-9 and '-'")
	}
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return fail("must not start or end with '-'")
	}
	return nil
}

// IsValidSlug reports whether s passes ValidateSlug.
func IsValidSlug(s string) bool {
	return ValidateSlug(s) == nil
}

// ValidateName requires a non-blank display name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Value: name, Reason: "is required", Err: ErrInvalidName}
	}
	return nil
}

// ValidateFolder requires a workspace-relative path that stays inside
// the workspace. "" and "/" mean the workspace root.
func ValidateFolder(folder string) error {
	clean := NormalizeFolder(folder)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return &ValidationError{Field: "folder", Value: folder, Reason: "must stay inside the workspace", Err: ErrInvalidFolder}
	}
	return nil
}

// NormalizeFolder returns the slash-separated relative form of folder,
// with "." for the workspace root.
func NormalizeFolder(folder string) string {
	f := strings.ReplaceAll(strings.TrimSpace(folder), "\\", "/")
	f = strings.TrimLeft(f, "/")
	if f == "" {
		return "."
	}
	return path.Clean(f)
}
