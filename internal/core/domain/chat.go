package domain

type Query struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type Answer struct {
	Text       string  `json:"response"`
	IsRelated  bool    `json:"is_related"`
	Confidence float64 `json:"confidence"`

	Outcome AnswerOutcome `json:"-"`
}

// AnswerOutcome records which path produced an answer.
type AnswerOutcome string

const (
	OutcomeAnswered     AnswerOutcome = "answered"
	OutcomeFallback     AnswerOutcome = "fallback"
	OutcomeModelTimeout AnswerOutcome = "model_timeout"
	OutcomeModelFailed  AnswerOutcome = "model_failed"
)

// Calibrated confidence values. Answers never carry anything else.
const (
	ConfidenceRelated   = 0.8
	ConfidenceUnrelated = 0.3
	ConfidenceFailed    = 0.0
)

// ConfidenceFor maps a relevance decision to its calibrated confidence.
func ConfidenceFor(related bool) float64 {
	if related {
		return ConfidenceRelated
	}
	return ConfidenceUnrelated
}

// Classification is the outcome of relevance classification for one question.
type Classification struct {
	IsRelated                bool `json:"is_related"`
	IsRecommendationQuestion bool `json:"is_recommendation_question"`
	Overlap                  int  `json:"overlap"`
}

type ModelStatus string

const (
	ModelOK       ModelStatus = "ok"
	ModelTimedOut ModelStatus = "timed_out"
	ModelFailed   ModelStatus = "failed"
)

// ModelResult is the tagged outcome of one external model call.
type ModelResult struct {
	Status ModelStatus
	Text   string
	Reason string
}

func ModelSucceeded(text string) ModelResult {
	return ModelResult{Status: ModelOK, Text: text}
}

func ModelTimeout(reason string) ModelResult {
	return ModelResult{Status: ModelTimedOut, Reason: reason}
}

func ModelFailure(reason string) ModelResult {
	return ModelResult{Status: ModelFailed, Reason: reason}
}

func (r ModelResult) OK() bool {
	return r.Status == ModelOK
}
