// Package report renders the plain-text forest harvesting report.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fpang/forest-video-analyzer/internal/analysis"
)

// ContentType is the MIME type reports are stored with.
const ContentType = "text/plain"

const (
	engineLabel = "TwelveLabs Pegasus AI"
	footer      = "--- End of Report ---\nGenerated by Forest Video Analyzer v1.0"
	dateLayout  = "2006-01-02 15:04:05"
)

// Render formats result for the video named filename. The output depends
// only on its arguments.
func Render(result analysis.AggregateResult, filename string, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("FOREST HARVESTING REPORT\n")
	b.WriteString("========================\n")
	fmt.Fprintf(&b, "Video: %s\n", filename)
	fmt.Fprintf(&b, "Date: %s UTC\n", generatedAt.UTC().Format(dateLayout))
	fmt.Fprintf(&b, "Analysis: %s\n", engineLabel)
	b.WriteString("\nSUMMARY\n-------\n")
	fmt.Fprintf(&b, "Total Trees Cut: %d\n", result.TreesCut)
	b.WriteString("Processing completed successfully\n")
	b.WriteString("\nCUTTING EVENTS\n--------------\n")

	if len(result.Events) == 0 {
		b.WriteString("No cutting events detected in this video.\n")
	}
	for i, event := range result.Events {
		fmt.Fprintf(&b, "%d. %s - %s (Est. %d\" diameter)", i+1, event.Timestamp, event.Species, event.Diameter)
		if event.Confidence != nil {
			fmt.Fprintf(&b, " (Confidence: %.0f%%)", *event.Confidence*100)
		}
		b.WriteString("\n")
	}

	if len(result.SpeciesDetected) > 0 {
		b.WriteString("\nSPECIES BREAKDOWN\n-----------------\n")
		for _, tally := range speciesTally(result.Events) {
			fmt.Fprintf(&b, "%s: %d %s\n", tally.species, tally.count, pluralize(tally.count, "tree", "trees"))
		}
	}

	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

type tally struct {
	species string
	count   int
}

// speciesTally counts events per species in first-seen order.
func speciesTally(events []analysis.CuttingEvent) []tally {
	var tallies []tally
	index := make(map[string]int)
	for _, event := range events {
		i, ok := index[event.Species]
		if !ok {
			i = len(tallies)
			index[event.Species] = i
			tallies = append(tallies, tally{species: event.Species})
		}
		tallies[i].count++
	}
	return tallies
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
