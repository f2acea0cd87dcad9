package tui

import (
	"strings"

	"github.com/atotto/clipboard"
)

// copyToClipboard is a variable so tests can capture copies.
var copyToClipboard = func(s string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(strings.ReplaceAll(s, "\r\n", "\n"))
}

type clipboardError string

func (e clipboardError) Error() string { return string(e) }

const errClipboardUnsupported = clipboardError("no clipboard utility found (install xclip, xsel or wl-clipboard)")
