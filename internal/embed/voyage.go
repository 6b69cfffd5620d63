package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/turbopuffer/turbogrep/internal/chunk"
	"github.com/turbopuffer/turbogrep/internal/httpx"
	"github.com/turbopuffer/turbogrep/internal/turboerr"
)

const (
	voyageConcurrency  = 8
	voyageMaxBatchSize = 500
	voyageModel        = "voyage-code-3"
)

// voyageEndpoint is a var (not a const) so tests can redirect it to an
// httptest server.
var voyageEndpoint = "https://api.voyageai.com/v1/embeddings"

// VoyageEmbedder calls Voyage AI's embeddings API, ported wire-for-wire
// using base64 float32 vectors, adaptive
// batch-halving retry on a "max allowed tokens per submitted batch"
// response, query/document input_type.
type VoyageEmbedder struct {
	apiKey string
	client *http.Client
}

var _ Embedder = (*VoyageEmbedder)(nil)

func NewVoyageEmbedder(apiKey string) (*VoyageEmbedder, error) {
	if apiKey == "" {
		return nil, turboerr.MissingAPIKey("VOYAGE_API_KEY")
	}
	return &VoyageEmbedder{apiKey: apiKey, client: httpx.Shared()}, nil
}

func (v *VoyageEmbedder) Concurrency() int  { return voyageConcurrency }
func (v *VoyageEmbedder) MaxBatchSize() int { return voyageMaxBatchSize }

func (v *VoyageEmbedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.voyageai.com/", nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return turboerr.RequestFailed(err)
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}

type voyageRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	InputType      string   `json:"input_type"`
	OutputDtype    string   `json:"output_dtype"`
	EncodingFormat string   `json:"encoding_format"`
}

type voyageResponse struct {
	Data []struct {
		Embedding string `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed embeds chunks, recursively halving the batch on the provider's
// "max allowed tokens per submitted batch" error. Checks only for that
// exact substring (case-insensitive) and only retries when the batch
// can still be split (len > 1).
func (v *VoyageEmbedder) Embed(ctx context.Context, chunks []chunk.Chunk, kind Kind) (Result, error) {
	if len(chunks) == 0 {
		return Result{}, nil
	}

	inputType := "document"
	if kind == KindQuery {
		inputType = "query"
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = textFor(c)
	}

	reqBody := voyageRequest{
		Input:          texts,
		Model:          voyageModel,
		InputType:      inputType,
		OutputDtype:    "float",
		EncodingFormat: "base64",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, turboerr.RequestFailed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, voyageEndpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, turboerr.RequestFailed(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, turboerr.RequestFailed(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, turboerr.RequestFailed(err)
	}

	if resp.StatusCode != http.StatusOK {
		errText := string(respBytes)
		if strings.Contains(strings.ToLower(errText), "max allowed tokens per submitted batch") && len(chunks) > 1 {
			mid := len(chunks) / 2
			left, err := v.Embed(ctx, chunks[:mid], kind)
			if err != nil {
				return Result{}, err
			}
			right, err := v.Embed(ctx, chunks[mid:], kind)
			if err != nil {
				return Result{}, err
			}
			return Result{
				Chunks:      append(left.Chunks, right.Chunks...),
				TotalTokens: left.TotalTokens + right.TotalTokens,
			}, nil
		}
		return Result{}, turboerr.APIError(errText)
	}

	var parsed voyageResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return Result{}, turboerr.RequestFailed(err)
	}
	if len(parsed.Data) != len(chunks) {
		return Result{}, turboerr.APIError(fmt.Sprintf("expected %d embeddings, got %d", len(chunks), len(parsed.Data)))
	}

	out := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		vec, err := decodeBase64Float32(parsed.Data[i].Embedding)
		if err != nil {
			return Result{}, turboerr.APIError(fmt.Sprintf("failed to decode embedding: %v", err))
		}
		c.Vector = vec
		out[i] = c
	}

	return Result{Chunks: out, TotalTokens: parsed.Usage.TotalTokens}, nil
}

func decodeBase64Float32(s string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("embedding byte length %d not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
