package knowledge

import "strings"

// Chunk is a slice of a source document ready for embedding.
type Chunk struct {
	Text       string
	Source     string
	ChunkIndex int
}

// ChunkText splits text into overlapping chunks along paragraph boundaries.
func ChunkText(text string, chunkSize, chunkOverlap int, source string) []Chunk {
	if len(text) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 500
	}

	paragraphs := strings.Split(text, "\n\n")
	var chunks []Chunk
	var current strings.Builder
	idx := 0

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current.Len()+len(para) > chunkSize && current.Len() > 0 {
			chunks = append(chunks, Chunk{
				Text:       current.String(),
				Source:     source,
				ChunkIndex: idx,
			})
			idx++

			tail := current.String()
			current.Reset()
			if chunkOverlap > 0 && len(tail) > chunkOverlap {
				current.WriteString(tail[len(tail)-chunkOverlap:])
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	if current.Len() > 0 {
		chunks = append(chunks, Chunk{
			Text:       current.String(),
			Source:     source,
			ChunkIndex: idx,
		})
	}
	return chunks
}
