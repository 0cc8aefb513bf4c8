package client

import "fmt"

// TopResult is one match returned by FindSimilar.
type TopResult struct {
	Item  string  `json:"item"`
	Score float64 `json:"score"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

type similarRequest struct {
	Text       string `json:"text"`
	NumResults int    `json:"num_results"`
}

type similarResponse struct {
	TopResults []TopResult `json:"top_results"`
}

// StatusError is returned by the unary calls for a non-success status.
type StatusError struct {
	StatusCode int
	Status     string

	// Body is an excerpt of the response body.
	Body string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	if e.Body == "" {
		return fmt.Sprintf("server returned %s", status)
	}
	return fmt.Sprintf("server returned %s: %s", status, e.Body)
}
