package onnx_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/sidekick/corpus/embedder/onnx"
)

var vocab = map[string]int{
	"[UNK]": 100, "[CLS]": 101, "[SEP]": 102,
	"the": 1996, "mentor": 10779, "play": 2377, "##ing": 2075, "wise": 7968,
}

func TestTokenize(t *testing.T) {
	tok := onnx.NewTokenizer(vocab)

	assert.Equal(t, []int64{1996, 7968, 10779}, tok.Tokenize("The wise Mentor!"))
	assert.Equal(t, []int64{2377, 2075}, tok.Tokenize("playing"))
	assert.Equal(t, []int64{100, 100}, tok.Tokenize("zz"))
	assert.Empty(t, tok.Tokenize("  ...  "))
}

func TestEncodeFramesAndTruncates(t *testing.T) {
	tok := onnx.NewTokenizer(vocab)

	ids, mask := tok.Encode("the wise mentor", 8)
	assert.Equal(t, []int64{101, 1996, 7968, 10779, 102, 0, 0, 0}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 0, 0, 0}, mask)

	ids, mask = tok.Encode("the wise mentor the wise mentor", 4)
	assert.Equal(t, []int64{101, 1996, 7968, 102}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1}, mask)
}

func TestLoadTokenizer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokenizer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":{"vocab":{"the":1996}}}`), 0o644))

	tok, err := onnx.LoadTokenizer(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{1996}, tok.Tokenize("the"))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"model":{}}`), 0o644))
	_, err = onnx.LoadTokenizer(empty)
	assert.Error(t, err)
}

func TestPoolMeanOverAttended(t *testing.T) {
	// seq 3, hidden 2; last position is padding
	data := []float32{1, 0, 3, 0, 100, 100}
	got, err := onnx.Pool(data, []int64{1, 3, 2}, []int64{1, 1, 0}, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 0}, got, 1e-6)
}

func TestPoolAlreadyPooled(t *testing.T) {
	got, err := onnx.Pool([]float32{3, 4}, []int64{1, 2}, nil, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, got, 1e-6)
}

func TestPoolRejectsBadShapes(t *testing.T) {
	_, err := onnx.Pool([]float32{1}, []int64{1}, nil, 1)
	assert.Error(t, err)
	_, err = onnx.Pool(make([]float32, 6), []int64{1, 3, 2}, []int64{1, 1, 1}, 4)
	assert.Error(t, err)
	_, err = onnx.Pool(make([]float32, 6), []int64{1, 3, 2}, []int64{0, 0, 0}, 2)
	assert.Error(t, err)
}
