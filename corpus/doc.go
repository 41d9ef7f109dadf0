// Package corpus holds the labelled movie conversations that ground each
// persona's replies.
//
// Architecture:
//   - Record: one labelled conversation as produced by the classification step
//   - Store: vector storage, one collection per persona (chromem-go locally)
//   - Embedder: text-to-vector conversion (Gemini embeddings, or a
//     deterministic mock offline)
//   - Builder: rebuilds every persona collection from a record file
//   - Retriever: embeds a query and searches one persona's collection
//
// Retriever satisfies responder.Retriever, so the responder never sees the
// store or the embedder directly.
package corpus
