//nolint:revive // types is a standard Go package name pattern
package types

// OutcomeKind tags a SearchOutcome.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeDegraded OutcomeKind = "degraded"
)

// Origin says where the records in an outcome came from.
type Origin string

// Outcome origins.
const (
	OriginBrowser   Origin = "browser"
	OriginHTTP      Origin = "http"
	OriginSynthetic Origin = "synthetic"
)

// Advisory explains why an outcome is degraded.
type Advisory string

// Advisories for degraded outcomes.
const (
	AdvisoryNone          Advisory = ""
	AdvisoryCaptcha       Advisory = "captcha"
	AdvisoryBrowserFailed Advisory = "browser_failed"
	AdvisoryUnavailable   Advisory = "unavailable"
)

// Message returns a user-facing sentence for the advisory.
func (a Advisory) Message() string {
	switch a {
	case AdvisoryCaptcha:
		return "CAPTCHA detected on the court website. Showing sample data."
	case AdvisoryBrowserFailed:
		return "The court website could not be searched. Showing sample data."
	case AdvisoryUnavailable:
		return "The court website is unavailable. Showing sample data."
	default:
		return ""
	}
}

// Attempt records one failed stage on the way to an outcome.
type Attempt struct {
	Stage   Stage       `json:"stage"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// SearchOutcome is the single result of a validated search. Degraded outcomes
// always carry synthetic records and are otherwise shaped like successes.
type SearchOutcome struct {
	Kind      OutcomeKind   `json:"kind"`
	Origin    Origin        `json:"origin"`
	Advisory  Advisory      `json:"advisory,omitempty"`
	Case      CaseRecord    `json:"case"`
	Orders    []OrderRecord `json:"orders"`
	RawMarkup string        `json:"-"`
	Attempts  []Attempt     `json:"attempts,omitempty"`
}

// IsDegraded reports whether the records are synthetic.
func (o SearchOutcome) IsDegraded() bool {
	return o.Kind == OutcomeDegraded
}
