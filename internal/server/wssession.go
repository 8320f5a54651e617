package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhire/interview-client/pkg/protocol"
)

func writeDeadline() time.Time {
	return time.Now().Add(2 * time.Second)
}

// fraudFrame is the outbound proctoring frame. The server always sends the
// full assessment; the client decides what to surface.
type fraudFrame struct {
	Type    string     `json:"type"`
	Payload Assessment `json:"payload"`
}

// wsSession drives one interview connection: init handshake, questions,
// proctoring, and the final decision.
type wsSession struct {
	id       string
	clientID string
	conn     *websocket.Conn
	logger   *slog.Logger
	proctor  *Proctor

	writeMu sync.Mutex
	agent   *Agent
	ended   bool
}

func (s *wsSession) run() {
	defer s.conn.Close()
	s.logger.Info("interview connected", "session_id", s.id, "client_id", s.clientID)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("interview disconnected", "session_id", s.id, "error", err)
			} else {
				s.logger.Info("interview disconnected", "session_id", s.id)
			}
			return
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			s.logger.Debug("discarded client frame", "session_id", s.id, "error", err)
			continue
		}

		switch m := msg.(type) {
		case protocol.ClientInit:
			s.handleInit(m)
		case protocol.ClientVideoFrame:
			s.handleVideo(m)
		case protocol.ClientAnswer:
			if s.handleAnswer(m) {
				return
			}
		}
	}
}

func (s *wsSession) handleInit(m protocol.ClientInit) {
	if s.agent != nil {
		// Duplicate init; the first one wins.
		return
	}
	s.agent = NewAgent(m.Name, m.CVText, nil)
	s.logger.Info("interview started", "session_id", s.id, "candidate", m.Name, "cv_bytes", len(m.CVText))

	if q, ok := s.agent.NextQuestion(); ok {
		s.send(protocol.ServerQuestion{Type: protocol.TypeQuestion, Payload: q})
	}
}

func (s *wsSession) handleVideo(m protocol.ClientVideoFrame) {
	assessment, err := s.proctor.AssessFrame(m.Data)
	if err != nil {
		s.logger.Debug("frame assessment failed", "session_id", s.id, "error", err)
		return
	}
	s.send(fraudFrame{Type: protocol.TypeFraudAlert, Payload: assessment})
}

// handleAnswer scores the answer and advances the script. Returns true when
// the interview is over.
func (s *wsSession) handleAnswer(m protocol.ClientAnswer) bool {
	if s.agent == nil || s.ended {
		return false
	}
	scores := s.agent.ProcessAnswer(m.Payload)
	s.logger.Info("answer scored", "session_id", s.id,
		"technical", scores.Technical,
		"communication", scores.Communication,
		"confidence", scores.Confidence)

	if q, ok := s.agent.NextQuestion(); ok {
		s.send(protocol.ServerQuestion{Type: protocol.TypeQuestion, Payload: q})
		return false
	}

	decision := s.agent.Decide()
	s.ended = true
	s.logger.Info("interview complete", "session_id", s.id,
		"recommendation", decision.Recommendation, "final_score", decision.FinalScore)
	s.send(protocol.ServerInterviewEnd{
		Type: protocol.TypeInterviewEnd,
		Decision: protocol.Decision{
			Recommendation: decision.Recommendation,
			FinalScore:     decision.FinalScore,
		},
		Report: s.agent.Report(decision),
	})
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), writeDeadline())
	return true
}

func (s *wsSession) send(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		s.logger.Debug("send failed", "session_id", s.id, "error", err)
	}
}
