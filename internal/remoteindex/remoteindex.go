// Package remoteindex implements turbogrep's remote vector index client,
// wire-compatible with turbopuffer's v2 namespace API.
package remoteindex

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
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/turbopuffer/turbogrep/internal/chunk"
	"github.com/turbopuffer/turbogrep/internal/httpx"
	"github.com/turbopuffer/turbogrep/internal/metrics"
	"github.com/turbopuffer/turbogrep/internal/turboerr"
)

// Regions lists every turbopuffer region turbogrep probes to find the
// lowest-latency endpoint.
var Regions = []string{
	"gcp-us-central1",
	"gcp-us-east4",
	"gcp-europe-west3",
	"gcp-asia-southeast1",
	"aws-us-east-1",
	"aws-us-west-2",
	"aws-eu-central-1",
	"aws-ap-southeast-2",
	"azure-eastus",
	"azure-westeurope",
	"azure-southeastasia",
}

const (
	defaultRegion  = "gcp-us-east4"
	writeBatchSize = 1000
	writeConcurrency = 4
	scanPageSize   = 1200
)

// Client talks to one turbopuffer-compatible region over HTTPS.
type Client struct {
	apiKey  string
	region  string
	http    *http.Client
	metrics *metrics.Collector

	// baseURLOverride lets tests point the client at an httptest server
	// instead of a real region.
	baseURLOverride string
}

func New(apiKey, region string, m *metrics.Collector) *Client {
	if region == "" {
		region = defaultRegion
	}
	return &Client{apiKey: apiKey, region: region, http: httpx.Shared(), metrics: m}
}

// NewWithBaseURL builds a Client pointed at an arbitrary base URL,
// bypassing region resolution entirely. Exported for other packages'
// tests that need to drive a Client against an httptest server.
func NewWithBaseURL(apiKey, baseURL string, m *metrics.Collector) *Client {
	return &Client{apiKey: apiKey, http: httpx.Shared(), metrics: m, baseURLOverride: baseURL}
}

func (c *Client) baseURL() string {
	if c.baseURLOverride != "" {
		return c.baseURLOverride
	}
	return fmt.Sprintf("https://%s.turbopuffer.com", c.region)
}

// Ping probes region's root endpoint, used by FindClosestRegion.
func Ping(ctx context.Context, client *http.Client, region string) (time.Duration, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("https://%s.turbopuffer.com/", region), nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return time.Since(start), nil
}

// FindClosestRegion pings every region concurrently and returns the one
// with the lowest latency, defaulting to gcp-us-east4 if every probe
// fails.
func FindClosestRegion(ctx context.Context) string {
	client := httpx.Shared()

	type probe struct {
		region  string
		latency time.Duration
		err     error
	}
	results := make(chan probe, len(Regions))

	for _, region := range Regions {
		go func(region string) {
			latency, err := Ping(ctx, client, region)
			results <- probe{region: region, latency: latency, err: err}
		}(region)
	}

	best := ""
	bestLatency := time.Duration(math.MaxInt64)
	for range Regions {
		p := <-results
		if p.err != nil {
			continue
		}
		if p.latency < bestLatency {
			bestLatency = p.latency
			best = p.region
		}
	}
	if best == "" {
		return defaultRegion
	}
	return best
}

type upsertSchema struct {
	FileHash  string `json:"file_hash"`
	ChunkHash string `json:"chunk_hash"`
}

type upsertRow struct {
	ID        uint64   `json:"id"`
	Vector    string   `json:"vector"`
	Path      string   `json:"path"`
	StartLine uint32   `json:"start_line"`
	EndLine   uint32   `json:"end_line"`
	FileHash  uint64   `json:"file_hash"`
	ChunkHash uint64   `json:"chunk_hash"`
	FileMtime uint64   `json:"file_mtime"`
	FileCtime uint64   `json:"file_ctime"`
}

type writeRequest struct {
	UpsertRows      []upsertRow    `json:"upsert_rows"`
	DistanceMetric  string         `json:"distance_metric"`
	Schema          upsertSchema   `json:"schema"`
	DeleteByFilter  any            `json:"delete_by_filter,omitempty"`
}

// WriteChunks upserts chunks (which must already carry vectors) and, if
// stalePaths is non-empty, attaches a delete_by_filter to the first
// batch removing every row whose path is one of stalePaths — matching
// folding deletion into the initial
// write rather than issuing a separate request.
func (c *Client) WriteChunks(ctx context.Context, namespace string, chunks []chunk.Chunk, stalePaths []string) error {
	if len(chunks) == 0 && len(stalePaths) == 0 {
		return nil
	}

	var batches [][]chunk.Chunk
	for start := 0; start < len(chunks); start += writeBatchSize {
		end := start + writeBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	if len(batches) == 0 {
		batches = [][]chunk.Chunk{nil}
	}

	deleteFilter := buildDeleteFilter(stalePaths)

	sem := semaphore.NewWeighted(writeConcurrency)
	errCh := make(chan error, len(batches))

	for i, batch := range batches {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func(i int, batch []chunk.Chunk) {
			defer sem.Release(1)
			var filter any
			if i == 0 {
				filter = deleteFilter
			}
			errCh <- c.writeBatch(ctx, namespace, batch, filter)
		}(i, batch)
	}

	var firstErr error
	for range batches {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildDeleteFilter(stalePaths []string) any {
	if len(stalePaths) == 0 {
		return nil
	}
	if len(stalePaths) == 1 {
		return []any{"path", "Eq", stalePaths[0]}
	}
	conds := make([]any, len(stalePaths))
	for i, p := range stalePaths {
		conds[i] = []any{"path", "Eq", p}
	}
	return []any{"Or", conds}
}

func (c *Client) writeBatch(ctx context.Context, namespace string, batch []chunk.Chunk, deleteFilter any) error {
	rows := make([]upsertRow, len(batch))
	for i, ch := range batch {
		rows[i] = upsertRow{
			ID:        ch.ID,
			Vector:    encodeVector(ch.Vector),
			Path:      ch.Path,
			StartLine: ch.StartLine,
			EndLine:   ch.EndLine,
			FileHash:  ch.FileHash,
			ChunkHash: ch.ChunkHash,
			FileMtime: ch.FileMtime,
			FileCtime: ch.FileCtime,
		}
	}

	reqBody := writeRequest{
		UpsertRows:     rows,
		DistanceMetric: "cosine_distance",
		Schema:         upsertSchema{FileHash: "uint", ChunkHash: "uint"},
		DeleteByFilter: deleteFilter,
	}

	return c.post(ctx, "write", fmt.Sprintf("/v2/namespaces/%s", namespace), reqBody, nil)
}

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeVector(s string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("vector byte length %d not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return out, nil
}

// DeleteNamespace removes namespace entirely.
func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	return c.do(ctx, "delete_namespace", http.MethodDelete, fmt.Sprintf("/v2/namespaces/%s", namespace), nil, nil)
}

type queryRequest struct {
	RankBy             []any          `json:"rank_by"`
	TopK               int            `json:"top_k"`
	ExcludeAttributes  []string       `json:"exclude_attributes"`
	Consistency        map[string]any `json:"consistency"`
	Filters            any            `json:"filters,omitempty"`
}

type queryRow struct {
	ID        uint64  `json:"id"`
	Path      string  `json:"path"`
	StartLine uint32  `json:"start_line"`
	EndLine   uint32  `json:"end_line"`
	FileHash  uint64  `json:"file_hash"`
	ChunkHash uint64  `json:"chunk_hash"`
	FileMtime uint64  `json:"file_mtime"`
	FileCtime uint64  `json:"file_ctime"`
	Dist      float64 `json:"$dist"`
}

type queryResponse struct {
	Rows []queryRow `json:"rows"`
}

// QueryChunks runs an ANN query against namespace for vector, returning
// the topK nearest chunks with distances populated. It surfaces
// CodeNamespaceNotFound as a typed error the caller can recover from.
func (c *Client) QueryChunks(ctx context.Context, namespace string, vector []float32, topK int) ([]chunk.Chunk, error) {
	reqBody := queryRequest{
		RankBy:            []any{"vector", "ANN", vector},
		TopK:              topK,
		ExcludeAttributes: []string{"vector"},
		Consistency:       map[string]any{"level": "eventual"},
	}

	var parsed queryResponse
	if err := c.post(ctx, "query", fmt.Sprintf("/v2/namespaces/%s/query", namespace), reqBody, &parsed); err != nil {
		return nil, err
	}

	out := make([]chunk.Chunk, len(parsed.Rows))
	for i, row := range parsed.Rows {
		dist := row.Dist
		out[i] = chunk.Chunk{
			ID:        row.ID,
			Path:      row.Path,
			StartLine: row.StartLine,
			EndLine:   row.EndLine,
			FileHash:  row.FileHash,
			ChunkHash: row.ChunkHash,
			FileMtime: row.FileMtime,
			FileCtime: row.FileCtime,
			Distance:  &dist,
		}
	}
	return out, nil
}

// QueryByRegex runs a regex filter query against namespace's path
// attribute, ordered by id ascending (rank_by ["id","asc"], filters
// ["Regex", pattern]).
func (c *Client) QueryByRegex(ctx context.Context, namespace, pattern string, topK int) ([]chunk.Chunk, error) {
	reqBody := queryRequest{
		RankBy:            []any{"id", "asc"},
		TopK:              topK,
		ExcludeAttributes: []string{"vector"},
		Consistency:       map[string]any{"level": "eventual"},
		Filters:           []any{"Regex", pattern},
	}

	var parsed queryResponse
	if err := c.post(ctx, "query_regex", fmt.Sprintf("/v2/namespaces/%s/query", namespace), reqBody, &parsed); err != nil {
		return nil, err
	}

	out := make([]chunk.Chunk, len(parsed.Rows))
	for i, row := range parsed.Rows {
		out[i] = chunk.Chunk{
			ID:        row.ID,
			Path:      row.Path,
			StartLine: row.StartLine,
			EndLine:   row.EndLine,
			FileHash:  row.FileHash,
			ChunkHash: row.ChunkHash,
			FileMtime: row.FileMtime,
			FileCtime: row.FileCtime,
		}
	}
	return out, nil
}

// AllChunks paginates through every row in namespace (no vectors are
// fetched), used by the synchronizer's remote-side diff. Ported from
// rank_by id asc, page size 1200,
// continuation via an id-greater-than filter, stop on a short/empty page.
func (c *Client) AllChunks(ctx context.Context, namespace string) ([]chunk.Chunk, error) {
	var all []chunk.Chunk
	var lastID uint64
	haveLast := false

	for {
		reqBody := queryRequest{
			RankBy:            []any{"id", "asc"},
			TopK:              scanPageSize,
			ExcludeAttributes: []string{"vector"},
			Consistency:       map[string]any{"level": "eventual"},
		}
		if haveLast {
			reqBody.Filters = []any{"id", "Gt", lastID}
		}

		var parsed queryResponse
		if err := c.post(ctx, "scan", fmt.Sprintf("/v2/namespaces/%s/query", namespace), reqBody, &parsed); err != nil {
			return nil, err
		}

		for _, row := range parsed.Rows {
			all = append(all, chunk.Chunk{
				ID:        row.ID,
				Path:      row.Path,
				StartLine: row.StartLine,
				EndLine:   row.EndLine,
				FileHash:  row.FileHash,
				ChunkHash: row.ChunkHash,
				FileMtime: row.FileMtime,
				FileCtime: row.FileCtime,
			})
		}

		if len(parsed.Rows) < scanPageSize {
			break
		}
		lastID = parsed.Rows[len(parsed.Rows)-1].ID
		haveLast = true
	}

	return all, nil
}

// post issues a JSON POST against path, decoding the response into out
// (if non-nil), and classifying turbopuffer's namespace-not-found error
// text using an exact substring rule.
func (c *Client) post(ctx context.Context, op, path string, body any, out any) error {
	return c.do(ctx, op, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if c.metrics != nil {
			c.metrics.RemoteIndexRequestsTotal.WithLabelValues(op, outcome).Inc()
			c.metrics.RemoteIndexRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			outcome = "error"
			return turboerr.RequestFailed(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reader)
	if err != nil {
		outcome = "error"
		return turboerr.RequestFailed(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "error"
		return turboerr.RequestFailed(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = "error"
		return turboerr.RequestFailed(err)
	}

	if resp.StatusCode >= 400 {
		errText := string(respBytes)
		if strings.Contains(errText, "namespace") && strings.Contains(errText, "not found") {
			outcome = "namespace_not_found"
			return turboerr.NamespaceNotFound(errText)
		}
		outcome = "error"
		return turboerr.APIError(errText)
	}

	if out != nil && len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, out); err != nil {
			outcome = "error"
			return turboerr.RequestFailed(err)
		}
	}
	return nil
}
