package analysis

// MockResult returns the fixed placeholder result served when the indexing
// service is unavailable or not configured. Each call returns a fresh copy.
func MockResult() AggregateResult {
	return AggregateResult{
		TreesCut: 3,
		Events: []CuttingEvent{
			{Timestamp: "00:02:15", Species: "Oak", Diameter: 18, Confidence: float64Ptr(0.85)},
			{Timestamp: "00:05:42", Species: "Pine", Diameter: 14, Confidence: float64Ptr(0.92)},
			{Timestamp: "00:08:30", Species: "Maple", Diameter: 16, Confidence: float64Ptr(0.78)},
		},
		SpeciesDetected: []string{"Oak", "Pine", "Maple"},
	}
}
