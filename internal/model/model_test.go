package model

import (
	"math"
	"testing"
)

func TestNormalizeURL_Idempotent(t *testing.T) {
	cases := []string{
		"https://github.com/me/Repo.git",
		"https://github.com/me/repo/",
		"  https://github.com/me/repo.git/  ",
		"https://github.com/me/repo.git.git//",
		"git@github.com:me/repo.git",
		"",
		"/home/me/NEW_PROJECTS/demo",
	}
	for _, in := range cases {
		once := NormalizeURL(in)
		twice := NormalizeURL(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}

	if got := NormalizeURL("https://github.com/me/Repo.git/"); got != "https://github.com/me/repo" {
		t.Fatalf("unexpected normalized url: %q", got)
	}
}

func TestReplaceLastSegment(t *testing.T) {
	tests := []struct {
		url, old, new, want string
	}{
		{"/srv/pf/MY_REPOS/foo", "foo", "bar", "/srv/pf/MY_REPOS/bar"},
		{"https://github.com/me/foo", "foo", "bar", "https://github.com/me/bar"},
		{"https://github.com/me/foo.git", "foo", "bar", "https://github.com/me/bar.git"},
		{"https://github.com/me/foo/", "foo", "bar", "https://github.com/me/bar"},
		{`C:\pf\NEW_PROJECTS\foo`, "foo", "bar", `C:\pf\NEW_PROJECTS\bar`},
		{"", "foo", "bar", "bar"},
	}
	for _, tt := range tests {
		if got := ReplaceLastSegment(tt.url, tt.old, tt.new); got != tt.want {
			t.Errorf("ReplaceLastSegment(%q,%q,%q)=%q want %q", tt.url, tt.old, tt.new, got, tt.want)
		}
	}
}

func TestRepoNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://github.com/me/demo.git": "demo",
		"git@github.com:me/demo.git":     "demo",
		"https://github.com/me/demo/":    "demo",
		"":                               "",
	}
	for in, want := range tests {
		if got := RepoNameFromURL(in); got != want {
			t.Errorf("RepoNameFromURL(%q)=%q want %q", in, got, want)
		}
	}
}

func TestSafeName(t *testing.T) {
	ok := []string{"demo", "my-project_2", "v1.2"}
	bad := []string{"", " demo", "demo ", ".", "..", "a/b", `a\b`, "c:x"}
	for _, s := range ok {
		if !SafeName(s) {
			t.Errorf("expected %q to be safe", s)
		}
	}
	for _, s := range bad {
		if SafeName(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestProject_CreatedEpochAndKind(t *testing.T) {
	p := Project{CreatedAt: "2024-03-01T10:00:00Z"}
	if p.CreatedEpoch() == math.MinInt64 {
		t.Fatalf("expected parseable timestamp")
	}
	local := Project{CreatedAt: "2024-03-01T10:00:00.123456Z", IsLocalOnly: true}
	if _, ok := local.CreatedTime(); !ok {
		t.Fatalf("expected fractional timestamp to parse")
	}
	if (Project{CreatedAt: "yesterday"}).CreatedEpoch() != math.MinInt64 {
		t.Fatalf("expected unparseable timestamp to sort lowest")
	}

	priv := Project{IsPrivate: true}
	pub := Project{}
	if !(local.KindRank() < priv.KindRank() && priv.KindRank() < pub.KindRank()) {
		t.Fatalf("unexpected kind ordering: local=%d private=%d public=%d", local.KindRank(), priv.KindRank(), pub.KindRank())
	}
	if local.PrivacyLabel() != "" || priv.PrivacyLabel() != "private" || pub.PrivacyLabel() != "public" {
		t.Fatalf("unexpected privacy labels")
	}
}

func TestParseSortKey(t *testing.T) {
	for _, k := range SortKeys() {
		got, err := ParseSortKey(string(k))
		if err != nil || got != k {
			t.Fatalf("ParseSortKey(%q)=%q,%v", k, got, err)
		}
	}
	if _, err := ParseSortKey("stars"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}
