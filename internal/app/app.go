package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/velora/popdesk/internal/api"
	"github.com/velora/popdesk/internal/audio"
	"github.com/velora/popdesk/internal/keys"
	"github.com/velora/popdesk/internal/model"
	"github.com/velora/popdesk/internal/poll"
	"github.com/velora/popdesk/internal/session"
	"github.com/velora/popdesk/internal/store"
	"github.com/velora/popdesk/internal/theme"
	"github.com/velora/popdesk/internal/ui/announcement"
	"github.com/velora/popdesk/internal/ui/settings"
)

// acceptTimeout bounds the background accept call.
const acceptTimeout = 15 * time.Second

// acceptResultMsg carries the outcome of the background accept call.
type acceptResultMsg struct {
	notificationID string
	err            error
}

// logoutMsg signals that the session has been torn down and the program
// should exit.
type logoutMsg struct{}

// restoredAnnouncementMsg carries an announcement reloaded from the local
// store at startup. It is deliberately distinct from the poller's
// ShowAnnouncementMsg: handling it must not add another reader on the
// poller's result channel.
type restoredAnnouncementMsg struct {
	announcement model.PendingAnnouncement
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewMain ViewState = iota
	ViewSettings
	ViewHelp
)

// Model is the root Bubble Tea model that wires the poller, the
// announcement slot, the chime, and the modal together.
type Model struct {
	currentView ViewState

	announcements *store.AnnouncementStore
	notifications *api.NotificationService
	poller        *poll.Poller
	chime         *audio.Chime
	sess          *session.Session
	log           *zap.Logger
	keys          *keys.KeyMap

	modal        announcement.Model
	settingsView settings.Model
	helpView     help.Model

	width       int
	height      int
	ready       bool
	authExpired bool
}

// New creates the root application model.
func New(
	announcements *store.AnnouncementStore,
	notifications *api.NotificationService,
	poller *poll.Poller,
	chime *audio.Chime,
	sess *session.Session,
	log *zap.Logger,
) Model {
	km := keys.DefaultKeyMap()

	return Model{
		currentView:   ViewMain,
		announcements: announcements,
		notifications: notifications,
		poller:        poller,
		chime:         chime,
		sess:          sess,
		log:           log,
		keys:          km,
		modal:         announcement.New(km, 80, 24),
		settingsView:  settings.New(80, 24),
		helpView:      help.New(),
	}
}

// Init restores any persisted pending announcement and starts the poller.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.restorePending, m.poller.Start())
}

// restorePending reloads the announcement slot from the local store so an
// unacknowledged broadcast survives a restart.
func (m Model) restorePending() tea.Msg {
	a, err := m.announcements.Load()
	if err != nil {
		m.log.Error("restoring pending announcement", zap.Error(err))
		return nil
	}
	if a == nil {
		return nil
	}
	return restoredAnnouncementMsg{announcement: *a}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.modal.SetSize(msg.Width, msg.Height)
		m.settingsView.SetSize(msg.Width, msg.Height)
		m.helpView.Width = msg.Width - 4
		if m.currentView == ViewSettings {
			var cmd tea.Cmd
			m.settingsView, cmd = m.settingsView.Update(msg)
			return m, cmd
		}
		return m, nil

	case poll.ShowAnnouncementMsg:
		m.modal.Show(msg.Announcement)
		m.chime.Play()
		return m, m.poller.WaitForNextResult()

	case restoredAnnouncementMsg:
		m.modal.Show(msg.announcement)
		// Play is idempotent, so a poll result arriving right after the
		// restore cannot stack a second chime.
		m.chime.Play()
		return m, nil

	case poll.AnnouncementClearedMsg:
		// Deactivated server-side while on screen.
		m.modal.Hide()
		return m, m.poller.WaitForNextResult()

	case poll.PollErrorMsg:
		if msg.AuthExpired {
			m.authExpired = true
		}
		return m, m.poller.WaitForNextResult()

	case announcement.AcknowledgedMsg:
		return m.handleAcknowledged(msg)

	case acceptResultMsg:
		if msg.err != nil {
			// The user-visible acknowledgment already happened; never
			// reopen the modal over a failed accept call.
			m.log.Error("acknowledgment sync failed",
				zap.String("notification_id", msg.notificationID),
				zap.Error(msg.err),
			)
		}
		return m, nil

	case logoutMsg:
		m.poller.Stop()
		return m, tea.Quit

	case settings.SavedMsg:
		m.chime.SetVolume(msg.Volume)
		m.currentView = ViewMain
		return m, nil

	case settings.CancelMsg:
		m.currentView = ViewMain
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

// handleAcknowledged advances local state optimistically, then syncs the
// acknowledgment in the background. The modal is already closed; a failed
// accept call is log-only.
func (m Model) handleAcknowledged(msg announcement.AcknowledgedMsg) (tea.Model, tea.Cmd) {
	m.chime.Stop()
	if err := m.announcements.Clear(); err != nil {
		m.log.Error("clearing acknowledged announcement", zap.Error(err))
	}
	m.poller.MarkAcknowledged(msg.NotificationID)

	accept := m.acceptCmd(msg.NotificationID)
	if !msg.Logout {
		return m, accept
	}

	// Logout-type broadcast: dispatch the acknowledgment first, then tear
	// the session down.
	return m, tea.Sequence(accept, func() tea.Msg {
		m.sess.Logout()
		return logoutMsg{}
	})
}

// acceptCmd sends the accept call in the background.
func (m Model) acceptCmd(notificationID string) tea.Cmd {
	userID := m.sess.UserID()
	svc := m.notifications

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), acceptTimeout)
		defer cancel()

		err := svc.Accept(ctx, userID, notificationID)
		return acceptResultMsg{notificationID: notificationID, err: err}
	}
}

// handleKey routes key presses. While the modal is visible it owns every
// key except ctrl+c; it cannot be dismissed around the acknowledge flow.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.poller.Stop()
		return m, tea.Quit
	}

	if m.currentView == ViewMain && m.modal.Visible() {
		var cmd tea.Cmd
		m.modal, cmd = m.modal.Update(msg)
		return m, cmd
	}

	switch m.currentView {
	case ViewSettings:
		var cmd tea.Cmd
		m.settingsView, cmd = m.settingsView.Update(msg)
		return m, cmd

	case ViewHelp:
		m.currentView = ViewMain
		return m, nil
	}

	switch msg.String() {
	case "q":
		m.poller.Stop()
		return m, tea.Quit

	case "s":
		m.currentView = ViewSettings
		return m, m.settingsView.Start(m.chime.Volume())

	case "r":
		m.poller.RefreshNow()
		return m, nil

	case "?":
		m.currentView = ViewHelp
		return m, nil
	}

	return m, nil
}

// updateActiveView forwards non-key messages to the active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.currentView {
	case ViewSettings:
		var cmd tea.Cmd
		m.settingsView, cmd = m.settingsView.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.modal, cmd = m.modal.Update(msg)
	return m, cmd
}

// View renders the application.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := theme.HeaderStyle.Render("popdesk · CRM announcements")

	var body string
	switch {
	case m.currentView == ViewSettings:
		body = m.settingsView.View()

	case m.currentView == ViewHelp:
		m.helpView.ShowAll = true
		body = theme.PanelStyle.Width(m.width - 4).Render(
			m.helpView.View(m.keys),
		)

	case m.modal.Visible():
		body = m.modal.View()

	default:
		body = theme.PanelStyle.Width(m.width - 4).Render(
			lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
				"No pending announcements.",
			),
		)
	}

	bodyHeight := m.height - 2
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	centered := lipgloss.Place(
		m.width, bodyHeight, lipgloss.Center, lipgloss.Center, body,
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, centered, m.statusBar())
}

// statusBar renders the poll status line. The unreachable warning is derived
// from the live failure count so it disappears on its own after recovery.
func (m Model) statusBar() string {
	status := fmt.Sprintf("polling every %s", m.poller.Interval().Round(100*time.Millisecond))
	if n := m.poller.ConsecutiveErrors(); n > 0 {
		status = fmt.Sprintf("%s · %d failed checks · backend unreachable", status, n)
	}
	if m.authExpired {
		status = fmt.Sprintf("%s · session expired; log in again", status)
	}
	return theme.StatusBarStyle.Width(m.width).Render(status + " · ?: help")
}
