// Package tui is the terminal interview room: join screen, waiting room,
// the live interview, and the final report.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/voxhire/interview-client/pkg/media"
	"github.com/voxhire/interview-client/pkg/session"
	"github.com/voxhire/interview-client/pkg/transcribe"
	"github.com/voxhire/interview-client/pkg/upload"
)

// ViewMode is the current screen.
type ViewMode int

const (
	ViewJoin ViewMode = iota
	ViewWaiting
	ViewInterview
	ViewReport
)

const (
	waitingSeconds = 3
	maxWarnings    = 3
	uploadTimeout  = 30 * time.Second
)

// Messages
type sessionUpdateMsg struct {
	update session.Update
}

type updatesClosedMsg struct{}

type cvUploadedMsg struct {
	text string
	err  error
}

type toneDoneMsg struct {
	err error
}

type sessionStartedMsg struct {
	err error
}

type answerTurnMsg struct {
	err error
}

type countdownMsg time.Time

// Model is the root Bubble Tea model.
type Model struct {
	orc      *session.Orchestrator
	uploader *upload.Client

	width  int
	height int
	ready  bool

	viewMode ViewMode
	keys     KeyMap

	// Join screen
	nameInput textinput.Model
	cvInput   textinput.Model
	focusCV   bool
	joinErr   string

	// Waiting room
	countdown     int
	countdownDone bool
	uploadPending bool
	cvText        string
	toneStatus    string

	// Interview room
	status    session.Status
	question  string
	entries   []session.ChatEntry
	viewport  viewport.Model
	alerts    []session.Alert
	reactions []session.Reaction
	warnings  []string
	elapsed   time.Duration
	micOn     bool
	camOn     bool
	sharing   bool
	answering bool

	report *session.Report
}

// New creates the root model over an idle orchestrator.
func New(orc *session.Orchestrator, uploader *upload.Client) Model {
	name := textinput.New()
	name.Placeholder = "Your name"
	name.Prompt = "❯ "
	name.PromptStyle = promptStyle
	name.CharLimit = 80
	name.Width = 40
	name.Focus()

	cv := textinput.New()
	cv.Placeholder = "Path to CV (optional)"
	cv.Prompt = "❯ "
	cv.PromptStyle = promptStyle
	cv.CharLimit = 200
	cv.Width = 40

	return Model{
		orc:       orc,
		uploader:  uploader,
		viewMode:  ViewJoin,
		keys:      DefaultKeyMap(),
		nameInput: name,
		cvInput:   cv,
		countdown: waitingSeconds,
		micOn:     true,
		camOn:     true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) waitForUpdate() tea.Cmd {
	orc := m.orc
	return func() tea.Msg {
		select {
		case u := <-orc.Updates():
			return sessionUpdateMsg{update: u}
		case <-orc.Done():
			// Drain a final buffered update before reporting closure.
			select {
			case u := <-orc.Updates():
				return sessionUpdateMsg{update: u}
			default:
				return updatesClosedMsg{}
			}
		}
	}
}

func (m Model) startSessionCmd() tea.Cmd {
	orc := m.orc
	cfg := session.SessionConfig{
		ParticipantName: m.nameInput.Value(),
		CVText:          m.cvText,
	}
	return func() tea.Msg {
		return sessionStartedMsg{err: orc.Start(context.Background(), cfg)}
	}
}

func (m Model) uploadCVCmd(path string) tea.Cmd {
	uploader := m.uploader
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return cvUploadedMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		text, err := uploader.UploadCV(ctx, filepath.Base(path), f)
		return cvUploadedMsg{text: text, err: err}
	}
}

func (m Model) answerCmd() tea.Cmd {
	orc := m.orc
	return func() tea.Msg {
		return answerTurnMsg{err: orc.ActivateAnswerTurn()}
	}
}

func toneCmd() tea.Cmd {
	return func() tea.Msg {
		return toneDoneMsg{err: playTestTone()}
	}
}

func countdownCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return countdownMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.viewport.Width = m.width - 6
		m.viewport.Height = m.height - 12
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}
		m.viewport.SetContent(m.renderChat())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case countdownMsg:
		if m.viewMode != ViewWaiting {
			return m, nil
		}
		m.countdown--
		if m.countdown > 0 {
			return m, countdownCmd()
		}
		m.countdownDone = true
		return m, m.maybeStart()

	case cvUploadedMsg:
		m.uploadPending = false
		if msg.err != nil {
			m.pushWarning("CV upload failed: " + msg.err.Error())
		} else {
			m.cvText = msg.text
		}
		return m, m.maybeStart()

	case toneDoneMsg:
		if msg.err != nil {
			m.toneStatus = "audio check failed: " + msg.err.Error()
		} else {
			m.toneStatus = "audio OK"
		}
		return m, nil

	case sessionStartedMsg:
		if msg.err != nil {
			m.viewMode = ViewJoin
			m.joinErr = msg.err.Error()
			return m, nil
		}
		m.viewMode = ViewInterview
		m.status = m.orc.Status()
		return m, m.waitForUpdate()

	case answerTurnMsg:
		if msg.err != nil && !errors.Is(msg.err, transcribe.ErrAlreadyActive) {
			m.pushWarning(msg.err.Error())
		}
		return m, nil

	case sessionUpdateMsg:
		return m.handleSessionUpdate(msg.update)

	case updatesClosedMsg:
		if m.viewMode != ViewReport {
			m.viewMode = ViewReport
			m.report = m.orc.Report()
		}
		return m, nil
	}

	return m, m.updateInputs(msg)
}

func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	cmds = append(cmds, cmd)
	m.cvInput, cmd = m.cvInput.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.viewMode {
	case ViewJoin:
		return m.handleJoinKey(msg)
	case ViewWaiting:
		return m.handleWaitingKey(msg)
	case ViewInterview:
		return m.handleInterviewKey(msg)
	case ViewReport:
		switch msg.String() {
		case "q", "enter", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) handleJoinKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "shift+tab":
		m.focusCV = !m.focusCV
		if m.focusCV {
			m.nameInput.Blur()
			m.cvInput.Focus()
		} else {
			m.cvInput.Blur()
			m.nameInput.Focus()
		}
		return m, textinput.Blink
	case "enter":
		if m.nameInput.Value() == "" {
			m.joinErr = "name is required"
			return m, nil
		}
		m.joinErr = ""
		m.viewMode = ViewWaiting
		m.countdown = waitingSeconds
		cmds := []tea.Cmd{countdownCmd()}
		if path := m.cvInput.Value(); path != "" {
			m.uploadPending = true
			cmds = append(cmds, m.uploadCVCmd(path))
		}
		return m, tea.Batch(cmds...)
	}
	return m, m.updateInputs(msg)
}

func (m Model) handleWaitingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "t":
		m.toneStatus = "playing test tone..."
		return m, toneCmd()
	case "enter":
		// Skip the rest of the countdown.
		m.countdownDone = true
		return m, m.maybeStart()
	}
	return m, nil
}

func (m Model) handleInterviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.orc.End()
		return m, tea.Quit
	case key.Matches(msg, m.keys.End):
		m.orc.End()
		return m, nil
	case key.Matches(msg, m.keys.Answer):
		if m.answering {
			return m, nil
		}
		return m, m.answerCmd()
	case key.Matches(msg, m.keys.ToggleMic):
		if on, err := m.orc.ToggleTrack(media.TrackAudio); err == nil {
			m.micOn = on
		}
		return m, nil
	case key.Matches(msg, m.keys.ToggleCam):
		if on, err := m.orc.ToggleTrack(media.TrackVideo); err == nil {
			m.camOn = on
		}
		return m, nil
	case key.Matches(msg, m.keys.ScreenShare):
		if m.sharing {
			m.orc.StopScreenShare()
		} else if err := m.orc.StartScreenShare(context.Background()); err != nil {
			m.pushWarning(err.Error())
		}
		return m, nil
	case key.Matches(msg, m.keys.ReactThumb):
		m.orc.React("👍")
		return m, nil
	case key.Matches(msg, m.keys.ReactClap):
		m.orc.React("👏")
		return m, nil
	case key.Matches(msg, m.keys.ReactHeart):
		m.orc.React("❤️")
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// maybeStart starts the session once the countdown finished and any CV
// upload resolved.
func (m Model) maybeStart() tea.Cmd {
	if m.viewMode != ViewWaiting || !m.countdownDone || m.uploadPending {
		return nil
	}
	return m.startSessionCmd()
}

func (m Model) handleSessionUpdate(u session.Update) (tea.Model, tea.Cmd) {
	switch u := u.(type) {
	case session.StatusUpdate:
		m.status = u.Status
		if u.Status == session.StatusEnded {
			m.viewMode = ViewReport
			if m.report == nil {
				m.report = m.orc.Report()
			}
		}
	case session.WarningUpdate:
		if u.Err != nil {
			m.pushWarning(u.Err.Error())
		}
	case session.QuestionUpdate:
		m.question = u.Question
		m.entries = u.Entries
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()
	case session.AnswerUpdate:
		m.entries = u.Entries
		m.answering = false
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()
	case session.AlertsUpdate:
		m.alerts = u.Alerts
	case session.ReactionsUpdate:
		m.reactions = u.Reactions
	case session.TrackUpdate:
		switch u.Kind {
		case media.TrackAudio:
			m.micOn = u.Enabled
		case media.TrackVideo:
			m.camOn = u.Enabled
		}
	case session.ScreenShareUpdate:
		m.sharing = u.Active
	case session.AnswerTurnUpdate:
		m.answering = u.Active
	case session.TickUpdate:
		m.elapsed = u.Elapsed
	case session.ReportUpdate:
		r := u.Report
		m.report = &r
	}
	return m, m.waitForUpdate()
}

func (m *Model) pushWarning(w string) {
	m.warnings = append(m.warnings, w)
	if len(m.warnings) > maxWarnings {
		m.warnings = m.warnings[len(m.warnings)-maxWarnings:]
	}
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
