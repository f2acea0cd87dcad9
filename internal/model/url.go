package model

import (
	"path"
	"strings"
)

// NormalizeURL canonicalizes a repository URL for installed-set membership:
// surrounding space, trailing slashes and a ".git" suffix are stripped and the
// result is lower-cased. The loop makes the function idempotent even for inputs
// like "x.git/" or "x.git.git".
func NormalizeURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	for {
		next := strings.TrimSpace(strings.TrimSuffix(strings.TrimRight(s, "/"), ".git"))
		if next == s {
			return s
		}
		s = next
	}
}

// RepoNameFromURL returns the last path segment of a repository URL or scp-style
// remote ("git@github.com:owner/name.git"), without the ".git" suffix.
func RepoNameFromURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return ""
	}
	if i := strings.LastIndexAny(u, "/:"); i >= 0 {
		u = u[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(u, ".git"))
}

// ReplaceLastSegment swaps the trailing path segment of url when it equals oldName.
// URLs that don't end in oldName get newName appended to their parent.
func ReplaceLastSegment(url, oldName, newName string) string {
	trimmed := strings.TrimRight(url, "/")
	if trimmed == "" {
		return newName
	}
	i := strings.LastIndexAny(trimmed, "/\\")
	if i < 0 {
		return newName
	}
	last := trimmed[i+1:]
	suffix := ""
	if strings.HasSuffix(last, ".git") && strings.TrimSuffix(last, ".git") == oldName {
		suffix = ".git"
	}
	return trimmed[:i+1] + newName + suffix
}

// SafeName reports whether name is usable as a single folder/repository name.
func SafeName(name string) bool {
	if name == "" || strings.TrimSpace(name) != name {
		return false
	}
	if name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\:`) {
		return false
	}
	return path.Clean(name) == name
}
