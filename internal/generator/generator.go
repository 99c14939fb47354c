// Package generator turns a question and retrieved context into an answer.
package generator

import (
	"context"
	"strings"
)

// Generator produces an answer to query grounded in the retrieved passages.
type Generator interface {
	Name() string
	Generate(ctx context.Context, query, passages string) (string, error)
}

const promptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{context}

Question: {question}
Helpful Answer:`

// Prompt fills the "stuff" prompt with passages and question.
func Prompt(query, passages string) string {
	r := strings.NewReplacer("{context}", passages, "{question}", query)
	return r.Replace(promptTemplate)
}
