package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/turtacn/molscore/pkg/types/common"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// ScorersClient calls the /api/v1/scorers endpoints.
type ScorersClient struct {
	client *Client
}

// List returns the scorers registered on the server.
func (s *ScorersClient) List(ctx context.Context) ([]types.ScorerInfo, error) {
	var resp common.APIResponse[[]types.ScorerInfo]
	if err := s.client.do(ctx, http.MethodGet, "/api/v1/scorers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Score scores smiles with the named scorer. The returned scores align
// with smiles.
func (s *ScorersClient) Score(ctx context.Context, name string, smiles []string, opts map[string]any) (*types.ScoreResponse, error) {
	return s.ScoreRequest(ctx, name, &types.ScoreRequest{SMILES: smiles, Options: opts})
}

// ScoreRequest sends req to the named scorer.
func (s *ScorersClient) ScoreRequest(ctx context.Context, name string, req *types.ScoreRequest) (*types.ScoreResponse, error) {
	var resp common.APIResponse[*types.ScoreResponse]
	path := "/api/v1/scorers/" + url.PathEscape(name) + "/score"
	if err := s.client.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
