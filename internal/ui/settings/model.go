package settings

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/velora/popdesk/internal/audio"
	"github.com/velora/popdesk/internal/theme"
)

// SavedMsg is dispatched when the user confirms the settings form.
type SavedMsg struct {
	Volume float64
}

// CancelMsg is dispatched when the user aborts the settings form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	volume string
}

// Model is the Bubble Tea model for the chime settings form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new settings form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form with the current chime volume.
func (m *Model) Start(volume float64) tea.Cmd {
	m.fb.volume = strconv.FormatFloat(volume, 'f', 2, 64)
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the settings form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		v, err := strconv.ParseFloat(m.fb.volume, 64)
		if err != nil {
			v = audio.DefaultVolume
		}
		return m, func() tea.Msg {
			return SavedMsg{Volume: v}
		}
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg {
			return CancelMsg{}
		}
	}

	return m, cmd
}

// View renders the settings form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Chime Settings")

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.form.View())
	return theme.PanelStyle.Width(m.width - 4).Render(content)
}

// SetSize updates the settings view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// buildForm constructs the huh form for chime preferences.
func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Chime volume").
				Description(fmt.Sprintf("0 silences the chime; the maximum is %.1f.", audio.MaxVolume)).
				Value(&m.fb.volume).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(s, 64)
					if err != nil {
						return fmt.Errorf("enter a number between 0 and %.1f", audio.MaxVolume)
					}
					if v < 0 || v > audio.MaxVolume {
						return fmt.Errorf("volume must be between 0 and %.1f", audio.MaxVolume)
					}
					return nil
				}),
		),
	)
}
