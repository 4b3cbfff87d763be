package ai

import "context"

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryNext
	OutcomeExhausted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryNext:
		return "retry_next"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

type Reason string

const (
	ReasonNone       Reason = ""
	ReasonLoading    Reason = "loading"
	ReasonDeprecated Reason = "deprecated"
	ReasonHTTPStatus Reason = "http_status"
	ReasonTransport  Reason = "transport"
	ReasonMalformed  Reason = "malformed"
	ReasonInvalid    Reason = "invalid"
)

// Outcome is the classified result of one backend call.
type Outcome struct {
	Kind       OutcomeKind
	Reason     Reason
	Text       string
	StatusCode int
	Detail     string
}

func Success(text string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text}
}

func RetryNext(reason Reason, status int, detail string) Outcome {
	return Outcome{Kind: OutcomeRetryNext, Reason: reason, StatusCode: status, Detail: detail}
}

type GenerationParams struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	ReturnFullText bool    `json:"return_full_text"`
}

func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		MaxNewTokens:   800,
		Temperature:    0.5,
		TopP:           0.9,
		ReturnFullText: false,
	}
}

// Backend is one generative text service. Implementations never return errors; every
// failure is folded into a RetryNext outcome.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string, params GenerationParams) Outcome
}
