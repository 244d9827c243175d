package chunker

import "strings"

// ChunkContent splits content into retrievable units by breaking on the
// period character and dropping segments that are empty after trimming.
// This is a deliberately naive sentence-boundary heuristic: abbreviations
// and decimal numbers will over-segment, and content without periods comes
// back as a single chunk. Chunk order follows input order.
func ChunkContent(content string) []string {
	segments := strings.Split(strings.TrimSpace(content), ".")
	chunks := make([]string, 0, len(segments))
	for _, segment := range segments {
		chunk := strings.TrimSpace(segment)
		if chunk == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
