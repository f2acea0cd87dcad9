package gitrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// VersionFile is the per-project changelog whose last line is the push message.
const VersionFile = "VERSION.md"

var (
	versionRe = regexp.MustCompile(`(?m)^\s*v(\d+)\.(\d+)\.(\d+)\b`)
	tokenRe   = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_]{2,}`)
	camelRe   = regexp.MustCompile(`[A-Z]?[a-z]+|[A-Z]+|\d+`)
)

// NextVersion bumps the patch of the last vX.Y.Z line in text; v0.0.1 when none.
func NextVersion(text string) string {
	m := versionRe.FindAllStringSubmatch(text, -1)
	if len(m) == 0 {
		return "v0.0.1"
	}
	last := m[len(m)-1]
	major, _ := strconv.Atoi(last[1])
	minor, _ := strconv.Atoi(last[2])
	patch, _ := strconv.Atoi(last[3])
	return fmt.Sprintf("v%d.%d.%d", major, minor, patch+1)
}

// LastVersionLine returns the last non-blank line of dir's VERSION.md.
func LastVersionLine(dir string) string {
	b, err := os.ReadFile(filepath.Join(dir, VersionFile))
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}

// GenerateVersionLine appends "<next version> - <summary>" to VERSION.md and
// returns the line. An empty message is replaced by a summary of the working tree.
func GenerateVersionLine(ctx context.Context, dir, message string) (string, error) {
	path := filepath.Join(dir, VersionFile)
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	summary := strings.TrimSpace(message)
	if summary == "" {
		summary, err = ChangeSummary(ctx, dir)
		if err != nil {
			return "", err
		}
	}
	line := NextVersion(string(existing)) + " - " + summary

	text := string(existing)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(path, []byte(text+line+"\n"), 0o644); err != nil {
		return "", err
	}
	return line, nil
}

type changedFile struct {
	status string
	path   string
}

// ChangeSummary describes the uncommitted changes in a few words, e.g.
// "added API request handling".
func ChangeSummary(ctx context.Context, dir string) (string, error) {
	raw, err := git(ctx, dir, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return "", err
	}
	files := parseNameStatus(raw)
	if len(files) == 0 {
		return "working tree clean", nil
	}
	diff, _ := git(ctx, dir, "diff", "--", ".", ":(exclude)"+VersionFile)
	cached, _ := git(ctx, dir, "diff", "--cached", "--", ".", ":(exclude)"+VersionFile)
	combined := diff + "\n" + cached
	if len(combined) > 20000 {
		combined = combined[:20000]
	}

	scope := scopeHuman(files)
	words := addedWords(combined)
	for _, f := range files {
		for _, w := range splitWords(f.path) {
			words[w] = true
		}
	}
	for _, w := range strings.Fields(strings.ToLower(scope)) {
		words[w] = true
	}
	return actionVerb(files, words) + " " + featurePhrase(words, scope), nil
}

func parseNameStatus(raw string) []changedFile {
	var out []changedFile
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.TrimSpace(ln)
		status, path, ok := strings.Cut(ln, " ")
		if !ok {
			continue
		}
		path = strings.TrimSpace(path)
		if _, after, renamed := strings.Cut(path, "->"); renamed {
			path = strings.TrimSpace(after)
		}
		out = append(out, changedFile{status: status, path: path})
	}
	return out
}

func scopeOf(path string) string {
	p := strings.ReplaceAll(path, `\`, "/")
	switch {
	case strings.HasPrefix(p, "FRONTEND/"):
		return "frontend"
	case strings.HasPrefix(p, "BACKEND/"):
		return "backend"
	case strings.HasPrefix(p, "TEST") || strings.Contains(p, "/TEST"):
		return "tests"
	case strings.HasPrefix(p, ".github/"):
		return "CI"
	case strings.HasSuffix(p, ".md"):
		return "documentation"
	default:
		return "project"
	}
}

// scopeHuman joins the two most common scopes, e.g. "backend and tests".
func scopeHuman(files []changedFile) string {
	counts := map[string]int{}
	first := map[string]int{}
	for i, f := range files {
		s := scopeOf(f.path)
		if _, ok := first[s]; !ok {
			first[s] = i
		}
		counts[s]++
	}
	scopes := make([]string, 0, len(counts))
	for s := range counts {
		scopes = append(scopes, s)
	}
	sort.Slice(scopes, func(i, j int) bool {
		if counts[scopes[i]] != counts[scopes[j]] {
			return counts[scopes[i]] > counts[scopes[j]]
		}
		return first[scopes[i]] < first[scopes[j]]
	})
	if len(scopes) > 2 {
		scopes = scopes[:2]
	}
	return strings.Join(scopes, " and ")
}

func splitWords(s string) []string {
	var out []string
	for _, tok := range tokenRe.FindAllString(s, -1) {
		for _, chunk := range strings.Split(tok, "_") {
			for _, w := range camelRe.FindAllString(chunk, -1) {
				w = strings.ToLower(w)
				if len(w) < 3 || isDigits(w) {
					continue
				}
				out = append(out, w)
			}
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// addedWords collects identifier words from the "+" lines of a unified diff.
func addedWords(diff string) map[string]bool {
	out := map[string]bool{}
	for _, ln := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(ln, "+") || strings.HasPrefix(ln, "+++") {
			continue
		}
		for _, w := range splitWords(ln[1:]) {
			out[w] = true
		}
	}
	return out
}

func hasAny(words map[string]bool, candidates ...string) bool {
	for _, c := range candidates {
		if words[c] {
			return true
		}
	}
	return false
}

func actionVerb(files []changedFile, words map[string]bool) string {
	for _, f := range files {
		if f.status == "A" || f.status == "??" {
			return "added"
		}
	}
	for _, f := range files {
		if f.status == "D" {
			return "removed"
		}
	}
	switch {
	case hasAny(words, "fix", "bug", "error", "guard", "validate", "fallback"):
		return "fixed"
	case hasAny(words, "refactor", "rename", "cleanup", "rework"):
		return "refactored"
	default:
		return "improved"
	}
}

func featurePhrase(words map[string]bool, scope string) string {
	switch {
	case words["version"] && hasAny(words, "summary", "message", "keyword", "scope", "action"):
		return "auto version message generation"
	case hasAny(words, "api", "request", "response"):
		return "API request handling"
	case hasAny(words, "auth", "login", "token", "session"):
		return "authentication flow"
	case hasAny(words, "dialog", "modal", "button", "form"):
		return "UI interactions"
	case hasAny(words, "error", "exception", "validate", "fallback"):
		return "error handling and validation"
	case hasAny(words, "config", "settings", "env"):
		return "configuration loading"
	case hasAny(words, "rename", "name"):
		return "rename behavior"
	case hasAny(words, "delete", "remove"):
		return "delete flow"
	case hasAny(words, "parser", "parse"):
		return "parsing logic"
	default:
		return scope + " behavior"
	}
}
