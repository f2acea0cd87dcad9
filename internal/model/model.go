package model

import (
	"math"
	"strings"
	"time"
)

// Key is the stable identity of a project row: the (name, url) pair.
// Name alone is not unique across the remote and local namespaces.
type Key struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (k Key) IsZero() bool { return k.Name == "" && k.URL == "" }

func (k Key) String() string {
	if k.URL == "" {
		return k.Name
	}
	return k.Name + " <" + k.URL + ">"
}

type Project struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
	// CreatedAt is kept as delivered by the collaborator; see CreatedTime.
	CreatedAt   string `json:"createdAt"`
	IsLocalOnly bool   `json:"isLocalOnly"`
	IsPrivate   bool   `json:"isPrivate"`
	CanPublish  bool   `json:"canPublish"`

	// PublishUnconfirmed marks a local project whose publish call failed after the
	// remote side may already have created a repository. Cleared by the next full load.
	PublishUnconfirmed bool `json:"publishUnconfirmed,omitempty"`

	// RowNumber is derived by the entity store; never set it directly.
	RowNumber int `json:"rowNumber"`
}

func (p Project) Key() Key { return Key{Name: p.Name, URL: p.URL} }

var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CreatedTime parses CreatedAt. ok=false means the value is empty or unparseable.
func (p Project) CreatedTime() (time.Time, bool) {
	s := strings.TrimSpace(p.CreatedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CreatedEpoch returns CreatedAt as unix milliseconds, or math.MinInt64 when unparseable,
// so that unparseable timestamps order below every real one.
func (p Project) CreatedEpoch() int64 {
	t, ok := p.CreatedTime()
	if !ok {
		return math.MinInt64
	}
	return t.UnixMilli()
}

// KindRank orders projects as local-only < private-published < public-published.
func (p Project) KindRank() int {
	switch {
	case p.IsLocalOnly:
		return 0
	case p.IsPrivate:
		return 1
	default:
		return 2
	}
}

func (p Project) KindLabel() string {
	if p.IsLocalOnly {
		return "local project"
	}
	return "github repo"
}

// PrivacyLabel is empty for local-only projects; privacy only applies to published ones.
func (p Project) PrivacyLabel() string {
	if p.IsLocalOnly {
		return ""
	}
	if p.IsPrivate {
		return "private"
	}
	return "public"
}

// Account is the operator identity reported alongside a snapshot.
type Account struct {
	Username       string `json:"username"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	InstalledCount int    `json:"installedCount"`
	DefaultMessage string `json:"defaultMessage,omitempty"`
}

// Snapshot is the authoritative state fetched by a full load.
type Snapshot struct {
	Account       Account   `json:"account"`
	Projects      []Project `json:"projects"`
	InstalledURLs []string  `json:"installedUrls"`
}
