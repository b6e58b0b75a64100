package analysis

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// maxHitsPerQuery limits how many ranked hits each query contributes.
	maxHitsPerQuery = 5

	// defaultConfidence is used when a hit carries no score.
	defaultConfidence = 0.8
)

// searchResponse is the body returned by the search endpoint.
type searchResponse struct {
	Data []searchHit `json:"data"`
}

type searchHit struct {
	Start    *float64        `json:"start"`
	End      *float64        `json:"end"`
	Score    *float64        `json:"score"`
	Metadata json.RawMessage `json:"metadata"`
}

// QueryResponse pairs a query with the raw body the service returned for it.
type QueryResponse struct {
	Query Query
	Body  []byte
}

// Reducer folds search responses into an AggregateResult.
type Reducer struct {
	species  SpeciesEstimator
	diameter DiameterEstimator
}

// NewReducer creates a Reducer. Nil estimators select the placeholder
// HashSpeciesEstimator and RandomDiameterEstimator.
func NewReducer(species SpeciesEstimator, diameter DiameterEstimator) *Reducer {
	if species == nil {
		species = HashSpeciesEstimator{}
	}
	if diameter == nil {
		diameter = NewRandomDiameterEstimator(nil)
	}
	return &Reducer{species: species, diameter: diameter}
}

// Reduce folds every response in order and finalizes the result.
func (r *Reducer) Reduce(responses []QueryResponse) AggregateResult {
	var result AggregateResult
	for _, resp := range responses {
		result = r.Apply(result, resp.Query, resp.Body)
	}
	return result.Finalize()
}

// Apply folds one query's response body into result. A body that cannot be
// decoded is logged and result is returned unchanged.
func (r *Reducer) Apply(result AggregateResult, q Query, body []byte) AggregateResult {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Warn().Err(err).Str("query", q.Kind.String()).Int("bodyBytes", len(body)).Msg("Error parsing search results")
		return result
	}

	hits := resp.Data
	if len(hits) > maxHitsPerQuery {
		hits = hits[:maxHitsPerQuery]
	}

	for _, hit := range hits {
		if hit.Start == nil || hit.End == nil {
			continue
		}
		switch q.Kind {
		case QueryCutting:
			confidence := defaultConfidence
			if hit.Score != nil {
				confidence = *hit.Score
			}
			result.Events = append(result.Events, CuttingEvent{
				Timestamp:  FormatTimestamp(*hit.Start),
				Species:    r.species.Estimate(hit.Metadata).Species,
				Diameter:   r.diameter.Estimate(),
				Confidence: float64Ptr(confidence),
			})
		case QueryCount:
			if len(result.Events) > result.TreesCut {
				result.TreesCut = len(result.Events)
			}
		case QuerySpecies:
			species, ok := ExtractSpecies(metadataText(hit.Metadata))
			if ok && !slices.Contains(result.SpeciesDetected, species) {
				result.SpeciesDetected = append(result.SpeciesDetected, species)
			}
		}
	}

	result.TreesCut = len(result.Events)
	log.Debug().
		Str("query", q.Kind.String()).
		Int("hits", len(resp.Data)).
		Int("events", len(result.Events)).
		Int("species", len(result.SpeciesDetected)).
		Msg("Search results folded")
	return result
}

// metadataText extracts free text from hit metadata, which is either an
// object with a "text" field or a list of such objects.
func metadataText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Text
	}
	var list []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, " ")
}
