// Package protocol defines the wire schema of the interview duplex channel.
//
// Every frame is a single JSON object carrying a "type" discriminator.
// Outbound (client -> agent): init, video, answer.
// Inbound (agent -> client): question, fraud_alert, interview_end.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	TypeInit         = "init"
	TypeVideo        = "video"
	TypeAnswer       = "answer"
	TypeQuestion     = "question"
	TypeFraudAlert   = "fraud_alert"
	TypeInterviewEnd = "interview_end"
)

// DecodeError reports a frame that could not be decoded.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badFrame(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_frame", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// ClientInit announces the candidate to the interview agent. Sent once,
// immediately after the channel opens.
type ClientInit struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	CVText string `json:"cv_text"`
}

// ClientVideoFrame carries one base64-encoded frame sample.
type ClientVideoFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ClientAnswer carries one completed answer transcript.
type ClientAnswer struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// NewInit builds an init frame.
func NewInit(name, cvText string) ClientInit {
	return ClientInit{Type: TypeInit, Name: name, CVText: cvText}
}

// NewVideoFrame builds a video frame from base64-encoded image bytes.
func NewVideoFrame(dataB64 string) ClientVideoFrame {
	return ClientVideoFrame{Type: TypeVideo, Data: dataB64}
}

// NewAnswer builds an answer frame.
func NewAnswer(transcript string) ClientAnswer {
	return ClientAnswer{Type: TypeAnswer, Payload: transcript}
}

// ServerQuestion is the agent's next interview question.
type ServerQuestion struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// FraudAlert is the canonical proctoring signal. Observed agent variants send
// either {reason, face_count} or {is_suspicious, alerts: [...], face_count};
// both normalize into this shape at decode time.
type FraudAlert struct {
	Reason    string `json:"reason"`
	FaceCount *int   `json:"face_count,omitempty"`
}

// ServerFraudAlert carries zero or more normalized proctoring alerts decoded
// from one fraud_alert frame.
type ServerFraudAlert struct {
	Type   string
	Alerts []FraudAlert
}

// Decision is the agent's terminal hiring decision.
type Decision struct {
	Recommendation string  `json:"recommendation"`
	FinalScore     float64 `json:"final_score"`
}

// ServerInterviewEnd terminates the session with the decision report.
type ServerInterviewEnd struct {
	Type     string   `json:"type"`
	Decision Decision `json:"decision"`
	Report   string   `json:"report"`
}

// fraudAlertPayload covers the union of observed fraud_alert payload shapes.
type fraudAlertPayload struct {
	Reason       string   `json:"reason"`
	IsSuspicious *bool    `json:"is_suspicious"`
	Alerts       []string `json:"alerts"`
	FaceCount    *int     `json:"face_count"`
}

// DecodeServerMessage decodes one inbound frame into its typed message.
// Unknown or malformed frames yield a *DecodeError; callers discard those
// frames without mutating state.
func DecodeServerMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badFrame("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badFrame("missing type", "type")
	}

	switch typ {
	case TypeQuestion:
		var msg ServerQuestion
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid question frame", "")
		}
		if strings.TrimSpace(msg.Payload) == "" {
			return nil, badFrame("question.payload is required", "payload")
		}
		return msg, nil
	case TypeFraudAlert:
		var frame struct {
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, badFrame("invalid fraud_alert frame", "")
		}
		if len(frame.Payload) == 0 {
			return nil, badFrame("fraud_alert.payload is required", "payload")
		}
		var payload fraudAlertPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, badFrame("invalid fraud_alert payload", "payload")
		}
		return normalizeFraudAlert(payload), nil
	case TypeInterviewEnd:
		var msg ServerInterviewEnd
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid interview_end frame", "")
		}
		if strings.TrimSpace(msg.Decision.Recommendation) == "" {
			return nil, badFrame("interview_end.decision.recommendation is required", "decision.recommendation")
		}
		return msg, nil
	default:
		return nil, unsupported("unsupported message type", "type")
	}
}

// DecodeClientMessage decodes one candidate frame on the agent side.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badFrame("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badFrame("missing type", "type")
	}

	switch typ {
	case TypeInit:
		var msg ClientInit
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid init frame", "")
		}
		if strings.TrimSpace(msg.Name) == "" {
			return nil, badFrame("init.name is required", "name")
		}
		return msg, nil
	case TypeVideo:
		var msg ClientVideoFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid video frame", "")
		}
		if strings.TrimSpace(msg.Data) == "" {
			return nil, badFrame("video.data is required", "data")
		}
		return msg, nil
	case TypeAnswer:
		var msg ClientAnswer
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid answer frame", "")
		}
		return msg, nil
	default:
		return nil, unsupported("unsupported message type", "type")
	}
}

func normalizeFraudAlert(payload fraudAlertPayload) ServerFraudAlert {
	out := ServerFraudAlert{Type: TypeFraudAlert}

	// Multi-alert variant: {is_suspicious, alerts: [...], face_count}.
	// A non-suspicious frame decodes to zero alerts.
	if payload.IsSuspicious != nil || len(payload.Alerts) > 0 {
		if payload.IsSuspicious != nil && !*payload.IsSuspicious {
			return out
		}
		for _, reason := range payload.Alerts {
			reason = strings.TrimSpace(reason)
			if reason == "" {
				continue
			}
			out.Alerts = append(out.Alerts, FraudAlert{Reason: reason, FaceCount: payload.FaceCount})
		}
		return out
	}

	// Single-alert variant: {reason, face_count}.
	reason := strings.TrimSpace(payload.Reason)
	if reason == "" {
		return out
	}
	out.Alerts = append(out.Alerts, FraudAlert{Reason: reason, FaceCount: payload.FaceCount})
	return out
}
