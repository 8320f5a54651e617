package session

import (
	"time"

	"github.com/voxhire/interview-client/pkg/media"
)

// Update is one state-change notification delivered on Orchestrator.Updates.
// Consumers switch on the concrete type.
type Update interface {
	sessionUpdate()
}

// StatusUpdate reports a lifecycle transition.
type StatusUpdate struct {
	Status Status
}

// WarningUpdate surfaces a non-fatal degradation (media acquisition failed,
// channel send dropped, capture error). The session continues.
type WarningUpdate struct {
	Err error
}

// QuestionUpdate carries the agent's latest question and the transcript so
// far.
type QuestionUpdate struct {
	Question string
	Entries  []ChatEntry
}

// AnswerUpdate carries the candidate's transcribed answer after it was sent.
type AnswerUpdate struct {
	Answer  string
	Entries []ChatEntry
}

// AlertsUpdate carries the currently visible proctoring alerts.
type AlertsUpdate struct {
	Alerts []Alert
}

// ReactionsUpdate carries the currently visible reactions.
type ReactionsUpdate struct {
	Reactions []Reaction
}

// TrackUpdate reports a local mute/disable toggle.
type TrackUpdate struct {
	Kind    media.TrackKind
	Enabled bool
}

// ScreenShareUpdate reports screen share starting or stopping, whether by
// request or by revocation.
type ScreenShareUpdate struct {
	Active bool
}

// AnswerTurnUpdate reports the transcription turn starting or finishing.
type AnswerTurnUpdate struct {
	Active bool
}

// TickUpdate carries the elapsed session time, emitted once per clock tick
// while the session is active.
type TickUpdate struct {
	Elapsed time.Duration
}

// ReportUpdate carries the terminal interview report.
type ReportUpdate struct {
	Report Report
}

func (StatusUpdate) sessionUpdate()      {}
func (WarningUpdate) sessionUpdate()     {}
func (QuestionUpdate) sessionUpdate()    {}
func (AnswerUpdate) sessionUpdate()      {}
func (AlertsUpdate) sessionUpdate()      {}
func (ReactionsUpdate) sessionUpdate()   {}
func (TrackUpdate) sessionUpdate()       {}
func (ScreenShareUpdate) sessionUpdate() {}
func (AnswerTurnUpdate) sessionUpdate()  {}
func (TickUpdate) sessionUpdate()        {}
func (ReportUpdate) sessionUpdate()      {}
