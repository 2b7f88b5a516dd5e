package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/pkg/utils/contextkey"
)

// HTTPGrader forwards a claim to a remote judge and reads back the outcome.
// The judge receives the claim as JSON and answers with an Outcome.
type HTTPGrader struct {
	endpoint string
	client   *http.Client
}

func NewHTTPGrader(endpoint string, timeout time.Duration) *HTTPGrader {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPGrader{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (g *HTTPGrader) Grade(ctx context.Context, claim *model.Claim) (model.Outcome, error) {
	body, err := json.Marshal(claim)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("marshal claim failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID, ok := ctx.Value(contextkey.TraceID).(string); ok && traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}
	if owner, ok := ctx.Value(contextkey.WorkerID).(string); ok && owner != "" {
		req.Header.Set("X-Worker-Id", owner)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("call judge failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Outcome{}, fmt.Errorf("judge returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	var outcome model.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return model.Outcome{}, fmt.Errorf("decode outcome failed: %w", err)
	}
	return outcome, nil
}
