package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"projects-factory/internal/remote"
)

// ScreenshotsDir is where a project keeps images shown in the detail panel.
var ScreenshotsDir = filepath.Join("TOOLS", "SCREENSHOTS")

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true, ".svg": true,
}

const maxReadmeBytes = 256 << 10

// readReadme returns the project's README, matched case-insensitively and
// preferring markdown. A project without one yields "".
func readReadme(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var pick string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lower := strings.ToLower(e.Name())
		if lower == "readme.md" {
			pick = e.Name()
			break
		}
		if pick == "" && strings.HasPrefix(lower, "readme") {
			pick = e.Name()
		}
	}
	if pick == "" {
		return "", nil
	}
	f, err := os.Open(filepath.Join(dir, pick))
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, maxReadmeBytes))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func listScreenshots(dir string) ([]remote.Screenshot, error) {
	shotsDir := filepath.Join(dir, ScreenshotsDir)
	entries, err := os.ReadDir(shotsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []remote.Screenshot
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		out = append(out, remote.Screenshot{Name: e.Name(), Src: filepath.Join(shotsDir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if li != lj {
			return li < lj
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// launchEditor starts the editor detached; the dashboard does not wait for it.
func launchEditor(editor []string, dir string) error {
	if len(editor) == 0 {
		return remote.Reject("open-folder", "no editor configured")
	}
	bin, err := exec.LookPath(editor[0])
	if err != nil {
		return remote.Reject("open-folder", fmt.Sprintf("Editor command not found: %s", editor[0]))
	}
	args := append(append([]string{}, editor[1:]...), dir)
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return remote.Wrap("open-folder", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
