package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhire/interview-client/pkg/protocol"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := httptest.NewServer(New(Config{}, logger).Handler())
	t.Cleanup(server.Close)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	return server, wsURL
}

func readServerFrame(t *testing.T, conn *websocket.Conn) any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return msg
}

func TestRoot_Hello(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "interview agent service" {
		t.Fatalf("body=%v", body)
	}
}

func TestUploadCV_ExtractsText(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "cv.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = io.WriteString(part, "Ada Lovelace\nGo engineer, 5 years")
	_ = mw.Close()

	resp, err := http.Post(server.URL+"/upload-cv", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /upload-cv: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["text"] != "Ada Lovelace\nGo engineer, 5 years" {
		t.Fatalf("text=%q", body["text"])
	}
}

func TestUploadCV_MissingFileRejected(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Ada")
	_ = mw.Close()

	resp, err := http.Post(server.URL+"/upload-cv", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /upload-cv: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", resp.StatusCode)
	}
}

func TestInterview_FullScriptEndsWithDecision(t *testing.T) {
	t.Parallel()

	_, wsURL := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/interview/12345", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.NewInit("Ada", "Go engineer")); err != nil {
		t.Fatalf("send init: %v", err)
	}

	// A strong answer on every axis keeps the decision deterministic.
	answer := strings.Join(technicalTerms, " ") + " " +
		strings.TrimSpace(strings.Repeat("we shipped and measured the results carefully ", 12))

	for i := 0; i < len(defaultQuestions); i++ {
		msg := readServerFrame(t, conn)
		q, ok := msg.(protocol.ServerQuestion)
		if !ok {
			t.Fatalf("frame %d = %T, want question", i, msg)
		}
		if q.Payload != defaultQuestions[i] {
			t.Fatalf("question %d = %q", i, q.Payload)
		}
		if err := conn.WriteJSON(protocol.NewAnswer(answer)); err != nil {
			t.Fatalf("send answer %d: %v", i, err)
		}
	}

	msg := readServerFrame(t, conn)
	end, ok := msg.(protocol.ServerInterviewEnd)
	if !ok {
		t.Fatalf("final frame = %T, want interview_end", msg)
	}
	if end.Decision.Recommendation != "Hire" {
		t.Fatalf("recommendation=%q, want Hire", end.Decision.Recommendation)
	}
	if end.Decision.FinalScore <= 75 {
		t.Fatalf("final score=%v", end.Decision.FinalScore)
	}
	if !strings.Contains(end.Report, "INTERVIEW REPORT") {
		t.Fatalf("report missing header:\n%s", end.Report)
	}
}

func TestInterview_ProctorsVideoFrames(t *testing.T) {
	t.Parallel()

	_, wsURL := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/interview/12345", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.NewInit("Ada", "")); err != nil {
		t.Fatalf("send init: %v", err)
	}
	if _, ok := readServerFrame(t, conn).(protocol.ServerQuestion); !ok {
		t.Fatalf("expected first question")
	}

	if err := conn.WriteJSON(protocol.NewVideoFrame(encodeFrame(t, gradientFill))); err != nil {
		t.Fatalf("send clean frame: %v", err)
	}
	msg := readServerFrame(t, conn)
	fa, ok := msg.(protocol.ServerFraudAlert)
	if !ok {
		t.Fatalf("frame = %T, want fraud_alert", msg)
	}
	if len(fa.Alerts) != 0 {
		t.Fatalf("clean frame raised alerts: %+v", fa.Alerts)
	}

	if err := conn.WriteJSON(protocol.NewVideoFrame(encodeFrame(t, blackFill))); err != nil {
		t.Fatalf("send dark frame: %v", err)
	}
	msg = readServerFrame(t, conn)
	fa, ok = msg.(protocol.ServerFraudAlert)
	if !ok {
		t.Fatalf("frame = %T, want fraud_alert", msg)
	}
	if len(fa.Alerts) != 1 || fa.Alerts[0].Reason != "No face detected" {
		t.Fatalf("alerts=%+v", fa.Alerts)
	}
	if fa.Alerts[0].FaceCount == nil || *fa.Alerts[0].FaceCount != 0 {
		t.Fatalf("face_count=%v", fa.Alerts[0].FaceCount)
	}
}

func TestExtractText_FiltersBinaryRuns(t *testing.T) {
	t.Parallel()

	raw := append([]byte{0x00, 0x01}, []byte("Ada Lovelace")...)
	raw = append(raw, 0x02, 0x03)
	raw = append(raw, []byte("Go engineer")...)
	raw = append(raw, 0xff, 'a', 'b', 0xfe)

	text := extractText(raw)
	if !strings.Contains(text, "Ada Lovelace") || !strings.Contains(text, "Go engineer") {
		t.Fatalf("text=%q", text)
	}
	if strings.Contains(text, "ab") {
		t.Fatalf("short run survived: %q", text)
	}
}
