package langdetect

// Breakdown runs the go-enry based detector over repoDir and returns its
// result as a plain map suitable for embedding in analysis.json, falling
// back to an empty map if detection fails (e.g. an empty or unreadable
// repository) rather than failing the analysis node.
func Breakdown(repoDir string) map[string]interface{} {
	result, err := NewDetector(repoDir).Detect()
	if err != nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"languages": result.Languages,
		"primary":   result.Primary,
		"context":   result.Context,
	}
}
