package models

// These structs define the JSON payloads for the HTTP publish function, which
// lets the admin UI push a single article through the pipeline on demand.

// PublishArticleRequest is the input for the publish function.
type PublishArticleRequest struct {
	Article Article `json:"article"`
}

// PublishArticleResponse is the output of the publish function.
type PublishArticleResponse struct {
	Status  string          `json:"status"`
	Outcome DocumentOutcome `json:"outcome"`
}
