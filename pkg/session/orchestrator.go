// Package session drives one interview session end to end: lifecycle,
// channel traffic, media sampling, answer turns, and the ephemeral UI state
// (alerts, reactions, elapsed clock).
//
// All session state lives on a single loop goroutine. External goroutines
// (the dialer, the frame sampler, the channel pump, timers, the UI) post
// closures onto the loop instead of touching state directly.
package session

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxhire/interview-client/pkg/channel"
	"github.com/voxhire/interview-client/pkg/core"
	"github.com/voxhire/interview-client/pkg/media"
	"github.com/voxhire/interview-client/pkg/protocol"
	"github.com/voxhire/interview-client/pkg/transcribe"
)

// Status is the session lifecycle phase. Transitions are strictly forward:
// Idle -> Connecting -> Active -> Ended, with Connecting -> Ended allowed.
type Status int32

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusActive
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

const (
	// DefaultClockTick drives the elapsed-time display.
	DefaultClockTick = time.Second

	defaultUpdateBuffer = 256
)

// SessionConfig identifies the candidate joining the interview.
type SessionConfig struct {
	ParticipantName string
	CVText          string
}

// Session is the immutable identity of one started session.
type Session struct {
	ID              string
	ParticipantName string
	CVText          string
	StartedAt       time.Time
}

// Report is the agent's terminal decision for the session.
type Report struct {
	Recommendation string
	FinalScore     float64
	Narrative      string
}

// Config carries the tunable parameters of an orchestrator.
type Config struct {
	// ServerURL is the interview service base URL (http(s) or ws(s)).
	ServerURL string

	// FrameInterval is the video sampling period. Zero means the media
	// pipeline default.
	FrameInterval time.Duration
	// AlertWindow and AlertTTL bound the visible proctoring alerts. Zero
	// means the debouncer defaults.
	AlertWindow int
	AlertTTL    time.Duration
	// ReactionTTL is the reaction lifetime. Zero means the bus default.
	ReactionTTL time.Duration
	// ClockTick is the elapsed-clock period. Zero means DefaultClockTick.
	ClockTick time.Duration
	// ConnectTimeout bounds the channel dial. Zero means the channel default.
	ConnectTimeout time.Duration
	// UpdateBuffer sizes the Updates channel.
	UpdateBuffer int
}

// Dependencies carries the collaborators of an orchestrator. Media is
// required; the rest default or stay optional.
type Dependencies struct {
	Media         *media.Pipeline
	Screen        *media.ScreenShare
	Transcription *transcribe.Session

	Logger *slog.Logger
	// Now is the clock, for tests.
	Now func() time.Time
	// Dial opens the duplex channel, for tests. Defaults to channel.Open.
	Dial func(ctx context.Context, url string) (*channel.Channel, error)
	// NewClientID mints the session identifier. Defaults to a millisecond
	// timestamp, matching what the agent service expects in the path.
	NewClientID func() string
}

// Orchestrator drives one interview session. Create with New, run with
// Start, finish with End or let the agent's interview_end finish it. A
// finished orchestrator cannot be restarted.
type Orchestrator struct {
	cfg    Config
	pipe   *media.Pipeline
	screen *media.ScreenShare
	trans  *transcribe.Session
	logger *slog.Logger
	nowFn  func() time.Time
	dial   func(ctx context.Context, url string) (*channel.Channel, error)
	newID  func() string

	status  atomic.Int32
	started atomic.Bool

	tasks   chan func()
	done    chan struct{}
	updates chan Update

	teardownOnce sync.Once

	reportMu sync.Mutex
	report   *Report

	// Loop-owned state. Touched only by closures running on the loop
	// goroutine.
	sess      Session
	ch        *channel.Channel
	sched     *Scheduler
	chat      *ChatLog
	alerts    *AlertDebouncer
	reactions *ReactionBus
	question  string
}

// New creates an orchestrator. The session does not connect until Start.
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, core.NewInvalidRequestError("server URL is required")
	}
	if deps.Media == nil {
		return nil, core.NewInvalidRequestError("media pipeline is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.ClockTick <= 0 {
		cfg.ClockTick = DefaultClockTick
	}
	if cfg.UpdateBuffer <= 0 {
		cfg.UpdateBuffer = defaultUpdateBuffer
	}

	o := &Orchestrator{
		cfg:    cfg,
		pipe:   deps.Media,
		screen: deps.Screen,
		trans:  deps.Transcription,
		logger: deps.Logger,
		nowFn:  deps.Now,
		dial:   deps.Dial,
		newID:  deps.NewClientID,

		tasks:   make(chan func(), 128),
		done:    make(chan struct{}),
		updates: make(chan Update, cfg.UpdateBuffer),

		sched:     NewScheduler(),
		chat:      &ChatLog{},
		alerts:    NewAlertDebouncer(cfg.AlertWindow, cfg.AlertTTL, deps.Now),
		reactions: NewReactionBus(cfg.ReactionTTL, deps.Now),
	}
	if o.dial == nil {
		o.dial = o.defaultDial
	}
	if o.newID == nil {
		o.newID = func() string {
			return strconv.FormatInt(time.Now().UnixMilli(), 10)
		}
	}
	return o, nil
}

func (o *Orchestrator) defaultDial(ctx context.Context, url string) (*channel.Channel, error) {
	opts := []channel.Option{channel.WithLogger(o.logger)}
	if o.cfg.ConnectTimeout > 0 {
		opts = append(opts, channel.WithConnectTimeout(o.cfg.ConnectTimeout))
	}
	return channel.Open(ctx, url, opts...)
}

// Status returns the current lifecycle phase.
func (o *Orchestrator) Status() Status {
	return Status(o.status.Load())
}

// Updates yields state-change notifications. The channel is buffered; a
// consumer that falls far behind loses intermediate updates, never the
// session itself.
func (o *Orchestrator) Updates() <-chan Update {
	return o.updates
}

// Done is closed once the session has ended and every resource is released.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Report returns the terminal report, or nil before interview_end arrived.
func (o *Orchestrator) Report() *Report {
	o.reportMu.Lock()
	defer o.reportMu.Unlock()
	if o.report == nil {
		return nil
	}
	r := *o.report
	return &r
}

// Session returns the session identity. Zero before Start.
func (o *Orchestrator) Session() Session {
	if !o.started.Load() {
		return Session{}
	}
	return o.sess
}

// Start begins the session: media acquisition and the channel dial run
// concurrently, and the session promotes to Active the moment the channel
// opens. Media failure degrades the session instead of failing it.
func (o *Orchestrator) Start(ctx context.Context, sc SessionConfig) error {
	if strings.TrimSpace(sc.ParticipantName) == "" {
		return core.NewInvalidRequestError("participant name is required")
	}
	if !o.status.CompareAndSwap(int32(StatusIdle), int32(StatusConnecting)) {
		return core.NewInvalidRequestError("session already started")
	}

	o.sess = Session{
		ID:              o.newID(),
		ParticipantName: sc.ParticipantName,
		CVText:          sc.CVText,
		StartedAt:       o.nowFn(),
	}
	o.started.Store(true)
	go o.loop()
	o.emit(StatusUpdate{Status: StatusConnecting})

	if o.trans != nil {
		o.trans.OnResult(func(text string) {
			o.do(func() { o.handleTranscript(text) })
		})
		o.trans.OnError(func(err error) {
			o.do(func() {
				o.emit(WarningUpdate{Err: err})
				o.emit(AnswerTurnUpdate{Active: false})
			})
		})
	}
	if o.screen != nil {
		o.screen.OnRevoked(func() {
			o.do(func() { o.emit(ScreenShareUpdate{Active: false}) })
		})
	}

	go func() {
		err := o.pipe.Acquire(ctx, media.Constraints{Video: true, Audio: true})
		o.do(func() { o.handleAcquire(err) })
	}()
	go func() {
		ch, err := o.dial(ctx, o.sessionURL())
		if ch != nil {
			// Whether or not the loop adopts this channel (the session may
			// end mid-dial), it is released once the session is done.
			go func() {
				<-o.done
				_ = ch.Close()
			}()
		}
		o.do(func() { o.handleDial(ch, err) })
	}()
	return nil
}

func (o *Orchestrator) sessionURL() string {
	return strings.TrimRight(o.cfg.ServerURL, "/") + "/ws/interview/" + o.sess.ID
}

// End finishes the session and releases every resource. Idempotent; a no-op
// before Start.
func (o *Orchestrator) End() {
	if !o.started.Load() {
		return
	}
	o.do(func() { o.teardown() })
}

// SetTrackEnabled mutes or unmutes one local track without renegotiating the
// stream.
func (o *Orchestrator) SetTrackEnabled(kind media.TrackKind, enabled bool) error {
	if err := o.pipe.SetTrackEnabled(kind, enabled); err != nil {
		return err
	}
	o.do(func() { o.emit(TrackUpdate{Kind: kind, Enabled: enabled}) })
	return nil
}

// ToggleTrack flips one local track and returns its new enablement.
func (o *Orchestrator) ToggleTrack(kind media.TrackKind) (bool, error) {
	next := !o.pipe.TrackEnabled(kind)
	if err := o.SetTrackEnabled(kind, next); err != nil {
		return !next, err
	}
	return next, nil
}

// React triggers one ephemeral emoji reaction. Local only; nothing crosses
// the channel.
func (o *Orchestrator) React(emoji string) {
	if strings.TrimSpace(emoji) == "" {
		return
	}
	o.do(func() {
		r := o.reactions.Trigger(emoji)
		o.sched.After(r.ExpiresAt.Sub(o.nowFn()), func() {
			o.do(o.pruneReactions)
		})
		o.emit(ReactionsUpdate{Reactions: o.reactions.Active()})
	})
}

// StartScreenShare acquires the screen surface. Independent of the camera
// pipeline; revocation surfaces as a ScreenShareUpdate.
func (o *Orchestrator) StartScreenShare(ctx context.Context) error {
	if o.screen == nil {
		return core.NewInvalidRequestError("screen share is not configured")
	}
	if err := o.screen.Start(ctx); err != nil {
		return err
	}
	o.do(func() { o.emit(ScreenShareUpdate{Active: true}) })
	return nil
}

// StopScreenShare releases the screen surface. Idempotent.
func (o *Orchestrator) StopScreenShare() {
	if o.screen == nil {
		return
	}
	o.screen.Stop()
	o.do(func() { o.emit(ScreenShareUpdate{Active: false}) })
}

// ActivateAnswerTurn begins one answer capture turn. The transcript, once
// complete, is sent to the agent and appended to the chat log. At most one
// turn runs at a time; a second call returns transcribe.ErrAlreadyActive.
func (o *Orchestrator) ActivateAnswerTurn() error {
	if o.trans == nil {
		return core.NewInvalidRequestError("transcription is not configured")
	}
	if o.Status() != StatusActive {
		return core.NewInvalidRequestError("session is not active")
	}
	if err := o.trans.Activate(); err != nil {
		return err
	}
	o.do(func() { o.emit(AnswerTurnUpdate{Active: true}) })
	return nil
}

// DeactivateAnswerTurn aborts an in-flight answer turn without sending
// anything.
func (o *Orchestrator) DeactivateAnswerTurn() {
	if o.trans == nil {
		return
	}
	o.trans.Deactivate()
	o.do(func() { o.emit(AnswerTurnUpdate{Active: false}) })
}

func (o *Orchestrator) loop() {
	for {
		select {
		case fn := <-o.tasks:
			fn()
		case <-o.done:
			return
		}
	}
}

// do posts fn onto the loop. Dropped once the session has ended.
func (o *Orchestrator) do(fn func()) {
	o.post(fn)
}

func (o *Orchestrator) post(fn func()) bool {
	select {
	case o.tasks <- fn:
		return true
	case <-o.done:
		return false
	}
}

func (o *Orchestrator) emit(u Update) {
	select {
	case o.updates <- u:
	default:
		o.logger.Debug("dropped session update", "update", u)
	}
}

// setStatus advances the lifecycle. Backward transitions are rejected.
func (o *Orchestrator) setStatus(next Status) bool {
	cur := Status(o.status.Load())
	if next <= cur {
		return false
	}
	o.status.Store(int32(next))
	o.emit(StatusUpdate{Status: next})
	return true
}

func (o *Orchestrator) handleAcquire(err error) {
	if err != nil {
		o.logger.Warn("media acquisition failed, continuing degraded", "error", err)
		o.emit(WarningUpdate{Err: err})
		return
	}
	o.pipe.StartSampling(o.cfg.FrameInterval, o.onFrameSample)
}

// onFrameSample runs on the sampler goroutine; it hops onto the loop before
// touching the channel.
func (o *Orchestrator) onFrameSample(s media.FrameSample) {
	o.do(func() {
		if o.Status() != StatusActive || o.ch == nil {
			return
		}
		frame := protocol.NewVideoFrame(base64.StdEncoding.EncodeToString(s.Data))
		if err := o.ch.Send(frame); err != nil {
			o.logger.Debug("dropped video frame", "seq", s.Seq, "error", err)
		}
	})
}

func (o *Orchestrator) handleDial(ch *channel.Channel, err error) {
	if o.Status() == StatusEnded {
		if ch != nil {
			go ch.Close()
		}
		return
	}
	if err != nil {
		o.logger.Warn("interview channel dial failed", "error", err)
		o.emit(WarningUpdate{Err: err})
		o.teardown()
		return
	}

	o.ch = ch
	if err := ch.Send(protocol.NewInit(o.sess.ParticipantName, o.sess.CVText)); err != nil {
		o.logger.Warn("init frame send failed", "error", err)
		o.emit(WarningUpdate{Err: err})
		o.teardown()
		return
	}
	// An open channel is the activation signal; the agent sends no ack.
	o.setStatus(StatusActive)

	go o.pump(ch)
	o.sched.Every(o.cfg.ClockTick, func() {
		o.do(o.tick)
	})
}

// pump feeds inbound frames onto the loop, preserving arrival order.
func (o *Orchestrator) pump(ch *channel.Channel) {
	for data := range ch.Frames() {
		frame := data
		o.do(func() { o.handleFrame(frame) })
	}
	o.do(func() {
		if o.Status() == StatusEnded {
			return
		}
		// Remote closed the channel. There is no reconnection; the session
		// is over.
		if err := ch.Err(); err != nil {
			o.emit(WarningUpdate{Err: err})
		}
		o.teardown()
	})
}

func (o *Orchestrator) handleFrame(data []byte) {
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		// Malformed frames mutate nothing.
		o.logger.Debug("discarded inbound frame", "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.ServerQuestion:
		o.chat.Append(ChatEntry{Role: RoleAgent, Text: m.Payload, At: o.nowFn()})
		o.question = m.Payload
		o.emit(QuestionUpdate{Question: m.Payload, Entries: o.chat.All()})
	case protocol.ServerFraudAlert:
		if len(m.Alerts) == 0 {
			return
		}
		for _, a := range m.Alerts {
			stored := o.alerts.Add(a.Reason, a.FaceCount)
			o.sched.After(stored.ExpiresAt.Sub(o.nowFn()), func() {
				o.do(o.pruneAlerts)
			})
		}
		o.emit(AlertsUpdate{Alerts: o.alerts.Active()})
	case protocol.ServerInterviewEnd:
		r := Report{
			Recommendation: m.Decision.Recommendation,
			FinalScore:     m.Decision.FinalScore,
			Narrative:      m.Report,
		}
		o.reportMu.Lock()
		o.report = &r
		o.reportMu.Unlock()
		o.emit(ReportUpdate{Report: r})
		o.teardown()
	}
}

func (o *Orchestrator) handleTranscript(text string) {
	if o.Status() != StatusActive {
		return
	}
	o.chat.Append(ChatEntry{Role: RoleCandidate, Text: text, At: o.nowFn()})
	if o.ch != nil {
		if err := o.ch.Send(protocol.NewAnswer(text)); err != nil {
			o.emit(WarningUpdate{Err: err})
		}
	}
	o.emit(AnswerUpdate{Answer: text, Entries: o.chat.All()})
	o.emit(AnswerTurnUpdate{Active: false})
}

func (o *Orchestrator) pruneAlerts() {
	if o.alerts.Prune() {
		o.emit(AlertsUpdate{Alerts: o.alerts.Active()})
	}
}

func (o *Orchestrator) pruneReactions() {
	if o.reactions.Prune() {
		o.emit(ReactionsUpdate{Reactions: o.reactions.Active()})
	}
}

func (o *Orchestrator) tick() {
	if o.Status() != StatusActive {
		return
	}
	o.emit(TickUpdate{Elapsed: o.nowFn().Sub(o.sess.StartedAt)})
}

// teardown releases everything exactly once: media, screen share, the
// transcription turn, timers, and the channel. Runs on the loop.
func (o *Orchestrator) teardown() {
	o.teardownOnce.Do(func() {
		o.status.Store(int32(StatusEnded))
		o.emit(StatusUpdate{Status: StatusEnded})

		o.pipe.Stop()
		if o.screen != nil {
			o.screen.Stop()
		}
		if o.trans != nil {
			o.trans.Deactivate()
		}
		o.sched.CancelAll()
		if o.ch != nil {
			_ = o.ch.Close()
		}
		close(o.done)
	})
}
