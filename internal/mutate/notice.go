package mutate

import (
	"errors"

	"projects-factory/internal/remote"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelFailure
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelFailure:
		return "failure"
	default:
		return "info"
	}
}

// Notice is the operator-facing outcome of an action.
type Notice struct {
	Level Level
	Text  string
}

func success(text string) Notice { return Notice{Level: LevelSuccess, Text: text} }

func failure(k Kind, err error) Notice {
	return Notice{Level: LevelFailure, Text: k.verb() + " failed: " + remote.Detail(err)}
}

// NoticeForError turns a Begin rejection into a notice.
func NoticeForError(k Kind, err error) Notice {
	var (
		pre PreconditionError
		nf  NotFoundError
		ip  InProgressError
	)
	switch {
	case errors.As(err, &ip):
		return Notice{Level: LevelInfo, Text: ip.Key.Name + ": " + string(ip.Kind) + " already in progress"}
	case errors.Is(err, ErrConfirmationRequired):
		return Notice{Level: LevelInfo, Text: k.verb() + " needs confirmation"}
	case errors.As(err, &pre):
		return Notice{Level: LevelFailure, Text: k.verb() + ": " + pre.Reason}
	case errors.As(err, &nf):
		return Notice{Level: LevelFailure, Text: nf.Error()}
	default:
		return failure(k, err)
	}
}
