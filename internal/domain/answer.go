package domain

// GenericErrorMessage is the only text a caller sees when the pipeline fails
// unexpectedly.
const GenericErrorMessage = "Sorry, I'm having trouble processing your request right now. Please try again later."

// Answer is the uniform envelope returned for every query.
type Answer struct {
	Response     string         `json:"response"`
	SessionID    string         `json:"sessionId"`
	ElapsedMs    int64          `json:"responseTimeMs"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Context      *RewardContext `json:"contextData,omitempty"`
}
