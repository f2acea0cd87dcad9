package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"projects-factory/internal/model"
	"projects-factory/internal/mutate"
	"projects-factory/internal/remote"
)

// choice is one button of a choice modal. A zero Kind cancels.
type choice struct {
	Label  string
	Kind   mutate.Kind
	Params mutate.Params
}

// choiceModal asks the operator to pick how (or whether) to run an action.
type choiceModal struct {
	Title   string
	Body    string
	Key     model.Key
	Choices []choice
	Focus   int
}

func (m *choiceModal) next() { m.Focus = (m.Focus + 1) % len(m.Choices) }

func (m *choiceModal) prev() { m.Focus = (m.Focus + len(m.Choices) - 1) % len(m.Choices) }

func (m choiceModal) selected() choice { return m.Choices[m.Focus] }

func confirmDelete(p model.Project) choiceModal {
	body := "Delete the local folder " + p.Name + "? This cannot be undone."
	if !p.IsLocalOnly {
		body = "Remove the local copy of " + p.Name + "? The GitHub repository is kept."
	}
	return choiceModal{
		Title: "Delete " + p.Name,
		Body:  body,
		Key:   p.Key(),
		Choices: []choice{
			{Label: "Delete", Kind: mutate.KindDelete, Params: mutate.Params{Confirmed: true}},
			{Label: "Cancel"},
		},
		Focus: 1,
	}
}

func confirmDeleteRemote(p model.Project) choiceModal {
	return choiceModal{
		Title: "Delete repository " + p.Name,
		Body:  "Delete " + p.URL + " on GitHub? This cannot be undone.",
		Key:   p.Key(),
		Choices: []choice{
			{Label: "Delete repository", Kind: mutate.KindDeleteRemote, Params: mutate.Params{Confirmed: true}},
			{Label: "Cancel"},
		},
		Focus: 1,
	}
}

func choosePublish(p model.Project) choiceModal {
	desc := p.Description
	return choiceModal{
		Title: "Publish " + p.Name,
		Body:  "Create a GitHub repository from " + p.URL + " and move it to MY_REPOS.",
		Key:   p.Key(),
		Choices: []choice{
			{Label: "Private", Kind: mutate.KindPublish, Params: mutate.Params{Visibility: remote.Private, Description: desc}},
			{Label: "Public", Kind: mutate.KindPublish, Params: mutate.Params{Visibility: remote.Public, Description: desc}},
			{Label: "Cancel"},
		},
	}
}

func choosePush(p model.Project) choiceModal {
	return choiceModal{
		Title: "Push " + p.Name,
		Body:  "Commit all changes and push. The commit message comes from VERSION.md.",
		Key:   p.Key(),
		Choices: []choice{
			{Label: "Use existing version", Kind: mutate.KindPush, Params: mutate.Params{VersionMode: remote.VersionUseExisting}},
			{Label: "Generate version", Kind: mutate.KindPush, Params: mutate.Params{VersionMode: remote.VersionGenerate}},
			{Label: "Cancel"},
		},
	}
}

func modalBodyWidth(width int) int {
	w := width - 8
	if w > 72 {
		w = 72
	}
	if w < 20 {
		w = 20
	}
	return w
}

func renderChoiceModal(width int, m choiceModal) string {
	// No nested borders: some terminals show background artifacts inside a
	// bordered box with a background color.
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(palette.SurfaceFg).
		Background(palette.ControlBg)
	btnActive := btnBase.
		Foreground(palette.SelectedFg).
		Background(palette.SelectedBg).
		Bold(true)

	sep := lipgloss.NewStyle().Background(palette.ControlBg).Render(" ")
	buttons := make([]string, 0, len(m.Choices)*2)
	for i, c := range m.Choices {
		if i > 0 {
			buttons = append(buttons, sep)
		}
		if i == m.Focus {
			buttons = append(buttons, btnActive.Render(c.Label))
		} else {
			buttons = append(buttons, btnBase.Render(c.Label))
		}
	}
	controls := lipgloss.JoinHorizontal(lipgloss.Top, buttons...)

	bodyW := modalBodyWidth(width)
	help := styleMuted().Width(bodyW).Render("tab/←/→: focus   enter: select   esc: cancel")
	content := strings.Join([]string{
		lipgloss.NewStyle().Width(bodyW).Render(m.Body),
		"",
		controls,
		"",
		help,
	}, "\n")

	title := styleAccent().Render(m.Title)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(palette.PanelEdge).
		Padding(0, 1).
		Render(title + "\n\n" + content)
}
