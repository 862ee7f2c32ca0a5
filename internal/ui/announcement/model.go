package announcement

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/velora/popdesk/internal/keys"
	"github.com/velora/popdesk/internal/model"
	"github.com/velora/popdesk/internal/theme"
)

// Phase is the modal's presentation state. The acknowledge action is only
// offered in PhaseReady.
type Phase int

const (
	// PhaseCollapsed shows a truncated preview of the message.
	PhaseCollapsed Phase = iota

	// PhaseExpanded shows the full message in a scrollable viewport.
	PhaseExpanded

	// PhaseReady means the user has read to the end (or the content was
	// never truncated) and may acknowledge.
	PhaseReady
)

// AcknowledgedMsg signals the parent that the user acknowledged the shown
// broadcast. Logout is set for logout-type broadcasts: the parent must tear
// the session down after the acknowledgment is dispatched.
type AcknowledgedMsg struct {
	NotificationID string
	Logout         bool
}

// previewLines is how many message lines the collapsed preview shows.
// Content that fits in the preview is never considered truncated.
const previewLines = 4

// readySlackLines is how close to the end of the expanded content the user
// must scroll before acknowledging unlocks.
const readySlackLines = 2

// Model is the blocking announcement modal. It cannot be dismissed except
// through the acknowledge flow; Esc is swallowed.
type Model struct {
	announcement *model.PendingAnnouncement
	phase        Phase
	truncated    bool
	acknowledged bool
	viewport     viewport.Model
	keys         *keys.KeyMap
	width        int
	height       int
}

// New creates a hidden announcement modal.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Visible reports whether an announcement is currently displayed.
func (m Model) Visible() bool {
	return m.announcement != nil
}

// Phase returns the current presentation state.
func (m Model) Phase() Phase {
	return m.phase
}

// Show displays an announcement. Content that fits the collapsed preview
// without truncation starts directly in PhaseReady; anything longer starts
// collapsed and must be expanded and read.
func (m *Model) Show(a model.PendingAnnouncement) {
	m.announcement = &a
	m.acknowledged = false
	m.truncated = m.messageLineCount() > previewLines

	if m.truncated {
		m.phase = PhaseCollapsed
	} else {
		m.phase = PhaseReady
	}
}

// Hide clears the modal, e.g. when the broadcast was deactivated
// server-side.
func (m *Model) Hide() {
	m.announcement = nil
	m.acknowledged = false
	m.phase = PhaseCollapsed
	m.viewport.GotoTop()
}

// SetSize updates the modal dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = m.contentWidth()
	m.viewport.Height = m.viewportHeight()
	if m.announcement != nil && m.phase != PhaseCollapsed {
		m.viewport.SetContent(m.wrappedMessage())
	}
}

// Update handles messages while the modal is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.announcement == nil {
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case keyMsg.Type == tea.KeyEsc:
		// The modal is blocking; only the acknowledge flow closes it.
		return m, nil

	case key.Matches(keyMsg, m.keys.Expand):
		return m.toggleExpand(), nil

	case key.Matches(keyMsg, m.keys.Acknowledge):
		return m.acknowledge()
	}

	if m.phase == PhaseCollapsed {
		return m, nil
	}

	// Delegate to the viewport for scrolling, then see whether the user
	// has reached the end.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	if m.phase == PhaseExpanded && m.nearBottom() {
		m.phase = PhaseReady
	}
	return m, cmd
}

// toggleExpand switches between the collapsed preview and the full message.
// Collapsing resets the scroll position and hides the acknowledge action
// again; the content must be re-read.
func (m Model) toggleExpand() Model {
	if !m.truncated {
		return m
	}

	switch m.phase {
	case PhaseCollapsed:
		m.viewport.Width = m.contentWidth()
		m.viewport.Height = m.viewportHeight()
		m.viewport.SetContent(m.wrappedMessage())
		m.viewport.GotoTop()
		m.phase = PhaseExpanded
		if m.nearBottom() {
			m.phase = PhaseReady
		}
	default:
		m.viewport.GotoTop()
		m.phase = PhaseCollapsed
	}
	return m
}

// acknowledge dispatches the acknowledgment exactly once. A second key
// press while the first is in flight is a no-op.
func (m Model) acknowledge() (Model, tea.Cmd) {
	if m.phase != PhaseReady || m.acknowledged {
		return m, nil
	}

	m.acknowledged = true
	a := *m.announcement
	m.announcement = nil
	m.phase = PhaseCollapsed

	return m, func() tea.Msg {
		return AcknowledgedMsg{
			NotificationID: a.NotificationID,
			Logout:         a.NotificationType == model.NotificationLogout,
		}
	}
}

// nearBottom reports whether the viewport shows the end of the content,
// within the slack allowance.
func (m Model) nearBottom() bool {
	if m.viewport.AtBottom() {
		return true
	}
	return m.viewport.YOffset+m.viewport.Height >= m.viewport.TotalLineCount()-readySlackLines
}

// View renders the modal.
func (m Model) View() string {
	if m.announcement == nil {
		return ""
	}

	a := m.announcement
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	badge := theme.PriorityStyle(a.Priority).Render(theme.PriorityLabel(a.Priority))
	sections = append(sections, lipgloss.JoinHorizontal(
		lipgloss.Top, titleStyle.Render(a.Title), "  ", badge,
	))

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	sender := a.SenderName
	if a.SenderRole != "" {
		sender = fmt.Sprintf("%s (%s)", a.SenderName, a.SenderRole)
	}
	sections = append(sections, metaStyle.Render(
		fmt.Sprintf("From %s · %s", sender, a.Timestamp),
	))
	sections = append(sections, "")

	switch m.phase {
	case PhaseCollapsed:
		sections = append(sections, m.previewMessage())
		sections = append(sections, "")
		sections = append(sections, theme.HelpStyle.Render(
			"enter: more details",
		))
	default:
		sections = append(sections, m.viewport.View())
		sections = append(sections, "")
		sections = append(sections, m.footer())
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return theme.ModalStyle.Width(m.width - 2).Render(content)
}

// footer renders the hint line under the expanded content.
func (m Model) footer() string {
	if m.phase != PhaseReady {
		return theme.HelpStyle.Render(
			"read to the end to acknowledge · j/k: scroll · enter: collapse",
		)
	}

	label := "a: acknowledge"
	if m.announcement.NotificationType == model.NotificationLogout {
		label = "a: acknowledge and log out"
	}
	if m.truncated {
		label += " · enter: collapse"
	}
	return theme.HelpStyle.Render(label)
}

// previewMessage renders the first previewLines of the wrapped message,
// with an ellipsis line when truncated.
func (m Model) previewMessage() string {
	lines := strings.Split(m.wrappedMessage(), "\n")
	if len(lines) <= previewLines {
		return strings.Join(lines, "\n")
	}

	preview := append([]string{}, lines[:previewLines]...)
	preview = append(preview, theme.HelpStyle.Render("…"))
	return strings.Join(preview, "\n")
}

// wrappedMessage returns the message wrapped to the modal's content width.
func (m Model) wrappedMessage() string {
	return lipgloss.NewStyle().Width(m.contentWidth()).Render(m.announcement.Message)
}

// messageLineCount counts the wrapped message lines.
func (m Model) messageLineCount() int {
	return strings.Count(m.wrappedMessage(), "\n") + 1
}

func (m Model) contentWidth() int {
	w := m.width - 8
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) viewportHeight() int {
	h := m.height - 10
	if h < 4 {
		h = 4
	}
	return h
}
