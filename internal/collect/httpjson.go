package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	httpTimeout      = 30 * time.Second
	maxResponseBytes = 8 << 20 // 8 MiB
)

// HTTPJSON fetches records from an HTTP endpoint returning a JSON array of
// flat objects. The endpoint URL comes from the job's params["url"]; the
// source name is sent as a query parameter so one endpoint can serve several
// sources.
type HTTPJSON struct {
	client *http.Client
}

func NewHTTPJSON(client *http.Client) *HTTPJSON {
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	return &HTTPJSON{client: client}
}

func (h *HTTPJSON) Collect(ctx context.Context, source string, params map[string]string) ([]Record, error) {
	rawURL := strings.TrimSpace(params["url"])
	if rawURL == "" {
		return nil, fmt.Errorf("params.url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("source", source)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL.Host, err)
	}
	defer func() { _, _ = io.Copy(io.Discard, resp.Body); _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", req.URL.Host, resp.StatusCode)
	}

	var rows []map[string]any
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(row))
		for k, v := range row {
			if v == nil {
				rec[k] = ""
				continue
			}
			rec[k] = fmt.Sprint(v)
		}
		records = append(records, rec)
	}
	return records, nil
}
