package analysis

import "strings"

// speciesKeywords is checked in order; earlier entries win when a text
// mentions several species.
var speciesKeywords = []string{"oak", "pine", "maple", "birch", "spruce", "fir", "cedar", "poplar"}

// ExtractSpecies returns the first species keyword found in text, title-cased.
func ExtractSpecies(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, species := range speciesKeywords {
		if strings.Contains(lower, species) {
			return strings.ToUpper(species[:1]) + species[1:], true
		}
	}
	return "", false
}
