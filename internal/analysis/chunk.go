package analysis

import (
	"unicode/utf8"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

const (
	// DefaultMaxChunkChars is the text budget of one text-mode chunk.
	DefaultMaxChunkChars = 15000
	// DefaultPagesPerChunk is the page count of one image-mode chunk.
	DefaultPagesPerChunk = 8

	// questionOverhead approximates the prompt framing around each question.
	questionOverhead = 50
)

// chunkBySize packs items in order into chunks whose summed size stays
// within budget. An item is never split; one larger than the budget gets a
// chunk of its own.
func chunkBySize[T any](items []T, budget int, size func(T) int) [][]T {
	var (
		chunks [][]T
		cur    []T
		used   int
	)
	for _, item := range items {
		n := size(item)
		if len(cur) > 0 && used+n > budget {
			chunks = append(chunks, cur)
			cur, used = nil, 0
		}
		cur = append(cur, item)
		used += n
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// chunkByCount splits items into consecutive chunks of at most n items.
func chunkByCount[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	chunks := make([][]T, 0, (len(items)+n-1)/n)
	for start := 0; start < len(items); start += n {
		end := min(start+n, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func questionSize(q exam.RawQuestion) int {
	return utf8.RuneCountInString(q.Text) + utf8.RuneCountInString(q.Label) + questionOverhead
}

// renumber assigns consecutive serial numbers from 1 and matching labels.
func renumber(questions []exam.Question) {
	for i := range questions {
		questions[i].SNo = i + 1
		questions[i].Label = exam.LabelFor(i + 1)
	}
}
