package session

import (
	"fmt"
	"strconv"
	"strings"

	model "github.com/zhouzirui/speech-coach/backend/internal/model/conversation"
)

const notAvailable = "N/A"

// FormatFeedback renders an analysis result as the text of a feedback
// entry. Missing values show as N/A.
func FormatFeedback(result model.AnalysisResult) string {
	score := notAvailable
	if result.Score != nil {
		score = strconv.FormatFloat(*result.Score, 'f', -1, 64) + "/100"
	}
	feedback := strings.TrimSpace(result.Feedback)
	if feedback == "" {
		feedback = notAvailable
	}
	return fmt.Sprintf("Pontuação: %s\n%s", score, feedback)
}
