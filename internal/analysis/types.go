// Package analysis turns an indexed video into a tree-cutting summary. It
// drives the indexing service through submit, wait and search, and folds
// the search hits into an AggregateResult.
package analysis

// CuttingEvent is one detected tree-felling occurrence.
type CuttingEvent struct {
	Timestamp  string   `json:"timestamp" dynamodbav:"timestamp"`
	Species    string   `json:"species" dynamodbav:"species"`
	Diameter   int      `json:"diameter" dynamodbav:"diameter"`
	Confidence *float64 `json:"confidence,omitempty" dynamodbav:"confidence,omitempty"`
}

// AggregateResult is the reduced summary for one job. TreesCut always
// equals len(Events) once a reduction has been finalized.
type AggregateResult struct {
	TreesCut        int            `json:"trees_cut" dynamodbav:"trees_cut"`
	Events          []CuttingEvent `json:"events" dynamodbav:"events"`
	SpeciesDetected []string       `json:"species_detected" dynamodbav:"species_detected"`
}

// Finalize enforces TreesCut == len(Events) and replaces nil slices with
// empty ones so the result serializes as lists.
func (r AggregateResult) Finalize() AggregateResult {
	if r.Events == nil {
		r.Events = []CuttingEvent{}
	}
	if r.SpeciesDetected == nil {
		r.SpeciesDetected = []string{}
	}
	r.TreesCut = len(r.Events)
	return r
}

// QueryKind selects how a query's hits are folded into the result.
type QueryKind int

const (
	QueryCutting QueryKind = iota
	QueryCount
	QuerySpecies
)

func (k QueryKind) String() string {
	switch k {
	case QueryCutting:
		return "cutting"
	case QueryCount:
		return "count"
	case QuerySpecies:
		return "species"
	default:
		return "unknown"
	}
}

// Query is one natural-language search issued against the indexed video.
type Query struct {
	Kind QueryKind
	Text string
}

// DefaultQueries is the fixed analysis pipeline, issued in order.
var DefaultQueries = []Query{
	{Kind: QueryCutting, Text: "Identify timestamps when a chainsaw cuts through a tree trunk"},
	{Kind: QueryCount, Text: "Count the total number of trees that are cut down in this video"},
	{Kind: QuerySpecies, Text: "Identify the species of trees being cut if visible"},
}

// Source records where an Outcome's result came from.
type Source string

const (
	SourceIndexer  Source = "twelvelabs"
	SourceFallback Source = "fallback"
)

// Outcome is the result of one analysis. A fallback outcome carries the
// fixed mock result and the reason the real analysis was not used.
type Outcome struct {
	Result         AggregateResult
	Source         Source
	FallbackReason string
}

// Degraded reports whether the outcome is placeholder data.
func (o Outcome) Degraded() bool {
	return o.Source == SourceFallback
}

func float64Ptr(v float64) *float64 {
	return &v
}
