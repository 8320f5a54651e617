package session

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhire/interview-client/pkg/media"
	"github.com/voxhire/interview-client/pkg/protocol"
	"github.com/voxhire/interview-client/pkg/transcribe"
)

// interviewHarness is a scripted agent endpoint. Decoded client frames fan
// out on channels; anything pushed to outbound is written to the client.
type interviewHarness struct {
	url   string
	close func()

	inits   chan protocol.ClientInit
	videos  chan protocol.ClientVideoFrame
	answers chan protocol.ClientAnswer

	outbound  chan any
	closeConn chan struct{}
	conns     atomic.Int64
}

type closeFrame struct{}

func newInterviewHarness(t *testing.T) *interviewHarness {
	t.Helper()

	h := &interviewHarness{
		inits:     make(chan protocol.ClientInit, 1),
		videos:    make(chan protocol.ClientVideoFrame, 64),
		answers:   make(chan protocol.ClientAnswer, 8),
		outbound:  make(chan any, 32),
		closeConn: make(chan struct{}),
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conns.Add(1)

		done := make(chan struct{})
		go func() {
			for {
				select {
				case v := <-h.outbound:
					if _, ok := v.(closeFrame); ok {
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
						_ = conn.Close()
						return
					}
					_ = conn.WriteJSON(v)
				case <-h.closeConn:
					_ = conn.Close()
					return
				case <-done:
					return
				}
			}
		}()

		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := protocol.DecodeClientMessage(data)
			if err != nil {
				continue
			}
			switch m := msg.(type) {
			case protocol.ClientInit:
				select {
				case h.inits <- m:
				default:
				}
			case protocol.ClientVideoFrame:
				select {
				case h.videos <- m:
				default:
				}
			case protocol.ClientAnswer:
				select {
				case h.answers <- m:
				default:
				}
			}
		}
	}))

	h.url = server.URL
	h.close = server.Close
	return h
}

func newTestOrchestrator(t *testing.T, serverURL string, mutate func(*Config, *Dependencies)) *Orchestrator {
	t.Helper()

	cfg := Config{
		ServerURL:     serverURL,
		FrameInterval: 20 * time.Millisecond,
		AlertWindow:   3,
		AlertTTL:      80 * time.Millisecond,
		ReactionTTL:   60 * time.Millisecond,
		ClockTick:     20 * time.Millisecond,
	}
	deps := Dependencies{
		Media:  media.NewPipeline(&media.TestPatternDevice{}, media.WithFrameSize(32, 24)),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	o, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(o.End)
	return o
}

func awaitUpdate[T Update](t *testing.T, o *Orchestrator) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case u := <-o.Updates():
			if v, ok := u.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func awaitStatus(t *testing.T, o *Orchestrator, want Status) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case u := <-o.Updates():
			if s, ok := u.(StatusUpdate); ok && s.Status == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %v (now %v)", want, o.Status())
		}
	}
}

func awaitDone(t *testing.T, o *Orchestrator) {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("session never finished tearing down")
	}
}

func TestStart_ActivatesAndDeliversQuestion(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()
	o := newTestOrchestrator(t, h.url, nil)

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada", CVText: "Go engineer"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	select {
	case init := <-h.inits:
		if init.Name != "Ada" || init.CVText != "Go engineer" {
			t.Fatalf("init=%+v", init)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server never received init")
	}
	awaitStatus(t, o, StatusActive)

	h.outbound <- protocol.ServerQuestion{Type: protocol.TypeQuestion, Payload: "Tell me about yourself."}
	qu := awaitUpdate[QuestionUpdate](t, o)
	if qu.Question != "Tell me about yourself." {
		t.Fatalf("question=%q", qu.Question)
	}
	if len(qu.Entries) != 1 || qu.Entries[0].Role != RoleAgent {
		t.Fatalf("entries=%+v", qu.Entries)
	}
}

func TestStart_SecondCallRejected(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()
	o := newTestOrchestrator(t, h.url, nil)

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err == nil {
		t.Fatalf("expected second Start to fail")
	}
}

func TestStart_MissingNameRejected(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, "http://127.0.0.1:1", nil)
	if err := o.Start(context.Background(), SessionConfig{}); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if o.Status() != StatusIdle {
		t.Fatalf("status=%v, want idle", o.Status())
	}
}

func TestVideoFrames_ForwardedWhileActive(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()
	o := newTestOrchestrator(t, h.url, nil)

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	awaitStatus(t, o, StatusActive)

	select {
	case frame := <-h.videos:
		raw, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil {
			t.Fatalf("frame data is not base64: %v", err)
		}
		if len(raw) == 0 {
			t.Fatalf("empty frame")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server never received a video frame")
	}
}

func TestMediaFailure_DegradesWithoutEndingSession(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()
	o := newTestOrchestrator(t, h.url, func(cfg *Config, deps *Dependencies) {
		deps.Media = media.NewPipeline(deniedDevice{})
	})

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	w := awaitUpdate[WarningUpdate](t, o)
	if w.Err == nil {
		t.Fatalf("warning carried no error")
	}
	awaitStatus(t, o, StatusActive)

	// Interview traffic still flows.
	h.outbound <- protocol.ServerQuestion{Type: protocol.TypeQuestion, Payload: "Still there?"}
	awaitUpdate[QuestionUpdate](t, o)
}

type deniedDevice struct{}

func (deniedDevice) Acquire(context.Context, media.Constraints) (*media.Stream, error) {
	return nil, errors.New("camera permission denied")
}

func TestFraudAlerts_WindowBoundedThenExpires(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()
	o := newTestOrchestrator(t, h.url, nil)

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	awaitStatus(t, o, StatusActive)

	reasons := []string{"r0", "r1", "r2", "r3", "r4"}
	for _, r := range reasons {
		h.outbound <- map[string]any{
			"type":    "fraud_alert",
			"payload": map[string]any{"reason": r, "face_count": 1},
		}
	}

	deadline := time.After(3 * time.Second)
	for {
		var alerts []Alert
		select {
		case u := <-o.Updates():
			au, ok := u.(AlertsUpdate)
			if !ok {
				continue
			}
			alerts = au.Alerts
		case <-deadline:
			t.Fatalf("window never reached the last three alerts")
		}
		if len(alerts) == 3 && alerts[0].Reason == "r2" && alerts[2].Reason == "r4" {
			break
		}
		if len(alerts) > 3 {
			t.Fatalf("window overflow: %d alerts", len(alerts))
		}
	}

	// TTL expiry empties the window without further traffic.
	deadline = time.After(3 * time.Second)
	for {
		select {
		case u := <-o.Updates():
			if au, ok := u.(AlertsUpdate); ok && len(au.Alerts) == 0 {
				return
			}
		case <-deadline:
			t.Fatalf("alerts never expired")
		}
	}
}

func TestInterviewEnd_DeliversReportAndTearsDown(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()

	var pipe *media.Pipeline
	o := newTestOrchestrator(t, h.url, func(cfg *Config, deps *Dependencies) {
		pipe = deps.Media
	})

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	awaitStatus(t, o, StatusActive)

	h.outbound <- protocol.ServerInterviewEnd{
		Type:     protocol.TypeInterviewEnd,
		Decision: protocol.Decision{Recommendation: "Hire", FinalScore: 82.5},
		Report:   "INTERVIEW REPORT",
	}

	ru := awaitUpdate[ReportUpdate](t, o)
	if ru.Report.Recommendation != "Hire" || ru.Report.FinalScore != 82.5 {
		t.Fatalf("report=%+v", ru.Report)
	}
	awaitDone(t, o)

	if o.Status() != StatusEnded {
		t.Fatalf("status=%v, want ended", o.Status())
	}
	if r := o.Report(); r == nil || r.Narrative != "INTERVIEW REPORT" {
		t.Fatalf("stored report=%+v", r)
	}
	if pipe.Acquired() {
		t.Fatalf("media still acquired after teardown")
	}

	// A late End is a no-op.
	o.End()
	if n := h.conns.Load(); n != 1 {
		t.Fatalf("connections=%d, want 1 (no reconnect)", n)
	}
}

func TestEnd_TeardownExactlyOnce(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()
	o := newTestOrchestrator(t, h.url, nil)

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	awaitStatus(t, o, StatusActive)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.End()
		}()
	}
	wg.Wait()
	awaitDone(t, o)

	if o.Status() != StatusEnded {
		t.Fatalf("status=%v, want ended", o.Status())
	}
}

func TestRemoteClose_EndsSessionWithoutReconnect(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()
	o := newTestOrchestrator(t, h.url, nil)

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	awaitStatus(t, o, StatusActive)

	h.outbound <- closeFrame{}
	awaitDone(t, o)

	time.Sleep(100 * time.Millisecond)
	if n := h.conns.Load(); n != 1 {
		t.Fatalf("connections=%d, want 1 (no reconnect)", n)
	}
}

func TestDialFailure_WarnsAndEnds(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, "http://127.0.0.1:1", func(cfg *Config, deps *Dependencies) {
		cfg.ConnectTimeout = 200 * time.Millisecond
	})

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	w := awaitUpdate[WarningUpdate](t, o)
	if w.Err == nil {
		t.Fatalf("warning carried no error")
	}
	awaitDone(t, o)
}

type cannedCapturer struct{}

func (cannedCapturer) Capture(ctx context.Context) ([]byte, error) {
	return []byte{1, 2, 3}, nil
}

type cannedTranscriber struct{ text string }

func (c cannedTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return c.text, nil
}

func TestAnswerTurn_SendsTranscriptAndAppendsChat(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()
	o := newTestOrchestrator(t, h.url, func(cfg *Config, deps *Dependencies) {
		deps.Transcription = transcribe.NewSession(
			cannedCapturer{},
			cannedTranscriber{text: "I shipped a Go service last year."},
		)
	})

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	awaitStatus(t, o, StatusActive)

	if err := o.ActivateAnswerTurn(); err != nil {
		t.Fatalf("ActivateAnswerTurn error: %v", err)
	}

	select {
	case ans := <-h.answers:
		if ans.Payload != "I shipped a Go service last year." {
			t.Fatalf("answer=%q", ans.Payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server never received the answer")
	}

	au := awaitUpdate[AnswerUpdate](t, o)
	last := au.Entries[len(au.Entries)-1]
	if last.Role != RoleCandidate || last.Text != "I shipped a Go service last year." {
		t.Fatalf("chat tail=%+v", last)
	}
}

func TestReactions_TriggerAndExpire(t *testing.T) {
	t.Parallel()

	h := newInterviewHarness(t)
	defer h.close()
	o := newTestOrchestrator(t, h.url, nil)

	if err := o.Start(context.Background(), SessionConfig{ParticipantName: "Ada"}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	awaitStatus(t, o, StatusActive)

	o.React("👍")
	ru := awaitUpdate[ReactionsUpdate](t, o)
	if len(ru.Reactions) != 1 || ru.Reactions[0].Emoji != "👍" {
		t.Fatalf("reactions=%+v", ru.Reactions)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case u := <-o.Updates():
			if r, ok := u.(ReactionsUpdate); ok && len(r.Reactions) == 0 {
				return
			}
		case <-deadline:
			t.Fatalf("reaction never expired")
		}
	}
}

func TestNew_RequiresMediaAndServerURL(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, Dependencies{Media: media.NewPipeline(&media.TestPatternDevice{})}); err == nil {
		t.Fatalf("expected error for missing server URL")
	}
	if _, err := New(Config{ServerURL: "http://localhost:8000"}, Dependencies{}); err == nil {
		t.Fatalf("expected error for missing media pipeline")
	}
}
