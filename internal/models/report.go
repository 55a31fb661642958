package models

// OutcomeKind classifies how one article fared in a run.
type OutcomeKind string

const (
	OutcomePublished OutcomeKind = "published"
	OutcomePartial   OutcomeKind = "partiallyPublished"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeSkipped   OutcomeKind = "skipped" // dry-run
)

// DocumentOutcome is the per-article result of a pipeline run.
type DocumentOutcome struct {
	Slug            string      `json:"slug"`
	Kind            OutcomeKind `json:"outcome"`
	AssetsRequested int         `json:"assetsRequested"`
	AssetsIncluded  int         `json:"assetsIncluded"`
	MissingAssets   []string    `json:"missingAssets,omitempty"`
	Reason          string      `json:"reason,omitempty"`
}

// RunReport aggregates the outcomes of one batch run, in input order.
type RunReport struct {
	Outcomes []DocumentOutcome `json:"outcomes"`
}

func (r *RunReport) Add(o DocumentOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Outcome returns the recorded outcome for a slug, if any.
func (r *RunReport) Outcome(slug string) (DocumentOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Slug == slug {
			return o, true
		}
	}
	return DocumentOutcome{}, false
}

// ExitCode maps the report onto the process exit code: 0 when every article
// published with all of its assets, 1 when anything was degraded or failed.
// Configuration aborts exit with 2 before a report exists.
func (r *RunReport) ExitCode() int {
	for _, o := range r.Outcomes {
		if o.Kind != OutcomePublished && o.Kind != OutcomeSkipped {
			return 1
		}
	}
	return 0
}
