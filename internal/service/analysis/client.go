package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	model "github.com/zhouzirui/speech-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/service/capture"
)

// ErrAnalysisFailed wraps every transport or service failure. No partial
// result accompanies it.
var ErrAnalysisFailed = errors.New("pronunciation analysis failed")

// ErrPracticeTextRequired is returned without contacting the service when
// the target text is blank.
var ErrPracticeTextRequired = errors.New("practice text is required")

// AnalyzePath is the scoring endpoint relative to the service base URL.
const AnalyzePath = "/api/pronuncia/analisar"

const maxResponseBytes = 1 << 20

// Client submits recordings to the pronunciation analysis service. It makes
// exactly one attempt per call.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a client for the service rooted at baseURL. A nil
// httpClient uses a client with a 60s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + AnalyzePath,
		httpClient: httpClient,
	}
}

// Analyze uploads clip together with the words the patient was asked to
// say and returns the scored result.
func (c *Client) Analyze(ctx context.Context, clip capture.Clip, practiceText string) (model.AnalysisResult, error) {
	practiceText = strings.TrimSpace(practiceText)
	if practiceText == "" {
		return model.AnalysisResult{}, ErrPracticeTextRequired
	}

	body, contentType, err := encodeRequest(clip, practiceText)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("%w: encode request: %v", ErrAnalysisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("%w: build request: %v", ErrAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("%w: read response: %v", ErrAnalysisFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.AnalysisResult{}, fmt.Errorf("%w: status %d: %s", ErrAnalysisFailed, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	result, err := DecodeResult(payload)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	log.Printf("[analysis] clip=%s scored=%t", clip.ID, result.Score != nil)
	return result, nil
}

func encodeRequest(clip capture.Clip, practiceText string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	ext := clip.Format
	if ext == "" {
		ext = "bin"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s.%s"`, clip.ID, ext))
	header.Set("Content-Type", audioContentType(ext))
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(clip.Data); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("expectedWords", practiceText); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func audioContentType(ext string) string {
	switch ext {
	case "wav":
		return "audio/wav"
	case "webm":
		return "audio/webm"
	case "mp3":
		return "audio/mpeg"
	case "ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// DecodeResult parses a service response. Missing or null fields are left
// empty; a score sent as a numeric string is accepted. The score is clamped
// to 0..100.
func DecodeResult(payload []byte) (model.AnalysisResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("decode response: %w", err)
	}

	var result model.AnalysisResult
	if value, ok := raw["overallScore"]; ok {
		result.Score = parseScore(value)
	}
	if value, ok := raw["overallFeedback"]; ok {
		var feedback string
		if err := json.Unmarshal(value, &feedback); err == nil {
			result.Feedback = strings.TrimSpace(feedback)
		}
	}
	return result, nil
}

func parseScore(value json.RawMessage) *float64 {
	if strings.TrimSpace(string(value)) == "null" {
		return nil
	}
	var score float64
	if err := json.Unmarshal(value, &score); err != nil {
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil
		}
		score = parsed
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return nil
	}
	switch {
	case score < 0:
		score = 0
	case score > 100:
		score = 100
	}
	return &score
}
