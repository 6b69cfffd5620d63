package embed

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/turbopuffer/turbogrep/internal/chunk"
)

const (
	localMaxSeqLen     = 256
	localDimensions    = 384
	localConcurrency   = 1
	localMaxBatchSize  = 32
	localQueryPrefix   = "Represent this sentence for searching relevant code: "
	localModelFileName = "model.onnx"
	localTokenFileName = "tokenizer.json"
)

// LocalEmbedder runs a BGE-small-class ONNX model on CPU, the offline
// fallback when no Voyage API key is configured. It is single-threaded
// by contract (Concurrency() == 1) since ONNX Runtime's own intra-op
// threading already saturates the CPU for one inference at a time.
type LocalEmbedder struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizers.Tokenizer
}

var _ Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder loads model.onnx and tokenizer.json from modelDir.
func NewLocalEmbedder(modelDir string) (*LocalEmbedder, error) {
	modelPath := filepath.Join(modelDir, localModelFileName)
	tokenPath := filepath.Join(modelDir, localTokenFileName)

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("local embedding model not found at %s", modelPath)
	}
	if _, err := os.Stat(tokenPath); err != nil {
		return nil, fmt.Errorf("tokenizer not found at %s", tokenPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	numThreads := runtime.NumCPU()
	if numThreads > 4 {
		numThreads = 4
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("set inter threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	tk, err := tokenizers.FromFile(tokenPath)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	return &LocalEmbedder{session: session, tokenizer: tk}, nil
}

func (l *LocalEmbedder) Close() error {
	if l.session != nil {
		l.session.Destroy()
	}
	if l.tokenizer != nil {
		l.tokenizer.Close()
	}
	return nil
}

func (l *LocalEmbedder) Concurrency() int  { return localConcurrency }
func (l *LocalEmbedder) MaxBatchSize() int { return localMaxBatchSize }
func (l *LocalEmbedder) Ping(ctx context.Context) error { return nil }

func (l *LocalEmbedder) Embed(ctx context.Context, chunks []chunk.Chunk, kind Kind) (Result, error) {
	if len(chunks) == 0 {
		return Result{}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		text := textFor(c)
		if kind == KindQuery {
			text = localQueryPrefix + text
		}
		texts[i] = text
	}

	vectors, err := l.embedBatch(texts)
	if err != nil {
		return Result{}, err
	}

	out := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		c.Vector = vectors[i]
		out[i] = c
	}
	return Result{Chunks: out}, nil
}

func (l *LocalEmbedder) embedBatch(texts []string) ([][]float32, error) {
	batchSize := len(texts)

	type encoded struct {
		ids  []int64
		mask []int64
	}
	all := make([]encoded, batchSize)
	maxLen := 0
	for i, text := range texts {
		enc := l.tokenizer.EncodeWithOptions(text, true, tokenizers.WithReturnAttentionMask())
		ids := enc.IDs
		if len(ids) > localMaxSeqLen {
			ids = ids[:localMaxSeqLen]
		}
		ids64 := make([]int64, len(ids))
		mask64 := make([]int64, len(ids))
		for j, v := range ids {
			ids64[j] = int64(v)
			mask64[j] = 1
		}
		if len(enc.AttentionMask) >= len(ids) {
			for j := range ids64 {
				mask64[j] = int64(enc.AttentionMask[j])
			}
		}
		all[i] = encoded{ids: ids64, mask: mask64}
		if len(ids64) > maxLen {
			maxLen = len(ids64)
		}
	}
	if maxLen == 0 {
		return nil, fmt.Errorf("all texts tokenized to zero length")
	}

	flatIDs := make([]int64, batchSize*maxLen)
	flatMask := make([]int64, batchSize*maxLen)
	flatType := make([]int64, batchSize*maxLen)
	for i, enc := range all {
		copy(flatIDs[i*maxLen:], enc.ids)
		copy(flatMask[i*maxLen:], enc.mask)
	}
	shape := ort.NewShape(int64(batchSize), int64(maxLen))

	inputIDs, err := ort.NewTensor(shape, flatIDs)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer inputIDs.Destroy()

	attnMask, err := ort.NewTensor(shape, flatMask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer attnMask.Destroy()

	typeIDs, err := ort.NewTensor(shape, flatType)
	if err != nil {
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	defer typeIDs.Destroy()

	outputs := []ort.Value{nil}
	if err := l.session.Run([]ort.Value{inputIDs, attnMask, typeIDs}, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	hiddenTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected onnx output type")
	}
	hidden := hiddenTensor.GetData()
	seqLen := int(hiddenTensor.GetShape()[1])

	embeddings := make([][]float32, batchSize)
	for i := 0; i < batchSize; i++ {
		vec := make([]float32, localDimensions)
		base := i * seqLen * localDimensions
		copy(vec, hidden[base:base+localDimensions])
		l2Normalize(vec)
		embeddings[i] = vec
	}
	return embeddings, nil
}

func l2Normalize(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm < 1e-10 {
		return
	}
	inv := float32(1.0 / norm)
	for i := range v {
		v[i] *= inv
	}
}
