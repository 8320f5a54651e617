package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/voxhire/interview-client/pkg/core"
)

const defaultSTTModel = "ink-whisper"

// HTTPTranscriber posts one utterance of pcm_s16le audio to a speech-to-text
// endpoint and returns the transcript.
type HTTPTranscriber struct {
	baseURL    string
	apiKey     string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// HTTPOption configures an HTTPTranscriber.
type HTTPOption func(*HTTPTranscriber)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTranscriber) { t.httpClient = client }
}

// WithModel overrides the transcription model.
func WithModel(model string) HTTPOption {
	return func(t *HTTPTranscriber) { t.model = model }
}

// WithLanguage sets the ISO language code.
func WithLanguage(language string) HTTPOption {
	return func(t *HTTPTranscriber) { t.language = language }
}

// WithSampleRate sets the audio sample rate hint in Hz.
func WithSampleRate(hz int) HTTPOption {
	return func(t *HTTPTranscriber) { t.sampleRate = hz }
}

// NewHTTPTranscriber creates a transcriber against the given endpoint.
func NewHTTPTranscriber(baseURL, apiKey string, opts ...HTTPOption) *HTTPTranscriber {
	t := &HTTPTranscriber{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      defaultSTTModel,
		language:   "en",
		sampleRate: 16000,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe converts audio to text.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "utterance.pcm")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if t.language != "" {
		if err := mw.WriteField("language", t.language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	reqURL := t.baseURL + "/stt"
	u, err := url.Parse(reqURL)
	if err != nil {
		return "", core.NewInvalidRequestError("invalid transcription endpoint")
	}
	q := u.Query()
	q.Set("encoding", "pcm_s16le")
	if t.sampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(t.sampleRate))
	}
	u.RawQuery = q.Encode()
	reqURL = u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", &core.TransportError{Op: http.MethodPost, URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &core.TransportError{Op: http.MethodPost, URL: reqURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", core.NewCaptureError(fmt.Sprintf("transcription endpoint returned %d", resp.StatusCode), nil)
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	return decoded.Text, nil
}
