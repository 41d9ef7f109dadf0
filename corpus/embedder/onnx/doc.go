// Package onnx embeds text locally with a sentence-transformer model run
// through ONNX Runtime.
//
// The tokenizer and pooling build everywhere. The embedder itself needs
// -tags onnx and an installed libonnxruntime.
package onnx
