package k6emitter

// Fixed test policy embedded in every generated script. None of it is
// configurable: it defines what a passing suite means.

const (
	// ExpectedStatus is the only status the per-script check accepts.
	ExpectedStatus = 200
	// ThinkTimeSeconds is the pause after every iteration, in scripts and master alike.
	ThinkTimeSeconds = 1

	LatencyMetric      = "business_latency"
	ErrorMetric        = "business_errors"
	SuiteFailureMetric = "suite_failures"

	// MasterFileName is the default master script name, written next to the output directory.
	MasterFileName = "master-test.js"
	// ScriptExt is appended to the uppercase method to name a script file.
	ScriptExt = ".js"
)

// Header is one request header sent by a generated script.
type Header struct {
	Name  string
	Value string
}

// Threshold is one k6 threshold: a metric and the conditions it must meet.
type Threshold struct {
	Metric     string
	Conditions []string
}

// DefaultHeaders returns the JSON content negotiation headers. They are sent
// whether or not the request has a body.
func DefaultHeaders() []Header {
	return []Header{
		{Name: "Accept", Value: "application/json"},
		{Name: "Content-Type", Value: "application/json"},
	}
}

// DefaultThresholds returns the per-script pass criteria.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Metric: "http_req_duration", Conditions: []string{"p(95)<500", "p(99)<800"}},
		{Metric: "http_req_failed", Conditions: []string{"rate<0.01"}},
		{Metric: ErrorMetric, Conditions: []string{"rate<0.01"}},
	}
}

// suiteThresholds are the master's criteria. Options exported by imported
// modules are ignored by k6, so the per-script thresholds are repeated here.
// Without scripts nothing defines the per-script metrics and k6 would reject
// thresholds on them, so only the master's own counter is checked.
func suiteThresholds(scripts int) []Threshold {
	failures := Threshold{Metric: SuiteFailureMetric, Conditions: []string{"count==0"}}
	if scripts == 0 {
		return []Threshold{failures}
	}
	return append(DefaultThresholds(), failures)
}
