package ollama

import (
	"fmt"
	"strings"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

func buildClassificationPrompt(sample string) string {
	return fmt.Sprintf(`You are a dataroom document classifier.
Return a strict JSON object with keys:
category (one of: %s), description (one short sentence).
No markdown, no extra keys. Use "uncategorized" when unsure.

Document:
%s`, strings.Join(domain.Categories, ", "), sample)
}

func buildAnswerPrompt(question string, chunks []domain.RetrievedChunk) string {
	if len(chunks) == 0 {
		return fmt.Sprintf(`The document search returned no relevant passages.
State clearly that no relevant information was found in the dataroom for
this question. Do not invent an answer.

Question:
%s`, question)
	}

	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		provenance := fmt.Sprintf("file=%s", chunk.Filename)
		if chunk.Sheet != "" {
			provenance += fmt.Sprintf(" sheet=%s rows=%d-%d", chunk.Sheet, chunk.RowFrom, chunk.RowTo)
		}
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] %s category=%s score=%.3f\n%s\n\n",
			idx+1,
			provenance,
			chunk.Category,
			chunk.Score,
			chunk.Text,
		))
	}

	return fmt.Sprintf(`Answer the user question only from the context below.
Cite supporting passages inline as [n]. If the context is insufficient,
say so directly.

Question:
%s

Context:
%s`, question, contextBuilder.String())
}

func buildDecomposePrompt(question string) string {
	return fmt.Sprintf(`Break the question into 2-4 focused sub-queries for
document retrieval, one aspect each. Return a strict JSON object:
{"sub_queries": ["...", "..."]}. If the question covers a single aspect,
return {"sub_queries": []}. No markdown, no extra keys.

Question:
%s`, question)
}
