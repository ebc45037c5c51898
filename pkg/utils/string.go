package utils

// Truncate shortens s to maxLen runes of content, appending an ellipsis
// when anything was cut. Used for record previews in list responses.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
