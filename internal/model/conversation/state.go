package conversation

// RecordingState is the session-wide microphone state.
type RecordingState string

const (
	RecordingIdle      RecordingState = "idle"
	RecordingActive    RecordingState = "recording"
	RecordingAnalyzing RecordingState = "analyzing"
)

// AnalysisResult is the outcome of scoring one recording. Score is nil when
// the service did not report one.
type AnalysisResult struct {
	Score    *float64 `json:"overallScore,omitempty"`
	Feedback string   `json:"overallFeedback"`
}
