package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/molscore/pkg/types/common"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// RunsClient calls the /api/v1/runs endpoints. The server answers 404 on
// both when run history is disabled.
type RunsClient struct {
	client *Client
}

// List returns the runs matching filter, newest first.
func (r *RunsClient) List(ctx context.Context, filter types.RunFilter) ([]types.ScoreRun, error) {
	q := url.Values{}
	if filter.Scorer != "" {
		q.Set("scorer", filter.Scorer)
	}
	if !filter.Since.IsZero() {
		q.Set("since", filter.Since.UTC().Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp common.APIResponse[[]types.ScoreRun]
	if err := r.client.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Get returns the run recorded for requestID.
func (r *RunsClient) Get(ctx context.Context, requestID string) (*types.ScoreRun, error) {
	var resp common.APIResponse[*types.ScoreRun]
	if err := r.client.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(requestID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
