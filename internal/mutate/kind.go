package mutate

import (
	"fmt"
	"strings"

	"projects-factory/internal/remote"
)

type Kind string

const (
	KindInstall      Kind = "install"
	KindDelete       Kind = "delete"
	KindRename       Kind = "rename"
	KindDescribe     Kind = "describe"
	KindPublish      Kind = "publish"
	KindPush         Kind = "push"
	KindDeleteRemote Kind = "delete-remote"
	KindOpen         Kind = "open"
	KindCreate       Kind = "create"
	KindRefresh      Kind = "refresh"
)

func Kinds() []Kind {
	return []Kind{KindInstall, KindDelete, KindRename, KindDescribe, KindPublish, KindPush, KindDeleteRemote, KindOpen, KindCreate, KindRefresh}
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown action: %q", s)
}

// Locks reports whether the action holds the per-entity lock while in flight.
func (k Kind) Locks() bool {
	switch k {
	case KindOpen, KindCreate, KindRefresh:
		return false
	}
	return true
}

// targetsRecord reports whether the action operates on an existing record.
func (k Kind) targetsRecord() bool {
	return k != KindCreate && k != KindRefresh
}

// collapsesOnSuccess lists the actions whose success closes the row's panel.
func (k Kind) collapsesOnSuccess() bool {
	switch k {
	case KindInstall, KindDelete, KindRename, KindPublish, KindDeleteRemote:
		return true
	}
	return false
}

func (k Kind) verb() string {
	switch k {
	case KindDeleteRemote:
		return "Delete repository"
	case KindCreate:
		return "Create project"
	case KindOpen:
		return "Open"
	case "":
		return "Action"
	default:
		s := string(k)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// Params carries the operator's input for an action.
type Params struct {
	NewName     string
	Description string
	Visibility  remote.Visibility
	VersionMode remote.VersionMode
	// Confirmed must be set for destructive actions (delete, delete-remote).
	Confirmed bool
}
