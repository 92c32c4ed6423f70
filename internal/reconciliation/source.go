package reconciliation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"terminal-core/internal/position"
	"terminal-core/pkg/db"
)

// StoreSource reads positions from the local positions table, which the
// position service writes to.
type StoreSource struct {
	Queries *db.Queries
}

func (s StoreSource) FetchPosition(ctx context.Context, id string) (position.Entity, error) {
	return s.Queries.GetPosition(ctx, id)
}

// HTTPSource fetches positions from the position service REST API
// (GET {BaseURL}/positions/{id}).
type HTTPSource struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) FetchPosition(ctx context.Context, id string) (position.Entity, error) {
	u := fmt.Sprintf("%s/positions/%s", s.BaseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return position.Entity{}, err
	}
	res, err := s.HTTPClient.Do(req)
	if err != nil {
		return position.Entity{}, fmt.Errorf("fetch position %s: %w", id, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return position.Entity{}, err
	}
	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return position.Entity{}, fmt.Errorf("position %s: %w", id, db.ErrNotFound)
	default:
		return position.Entity{}, fmt.Errorf("fetch position %s: status %d", id, res.StatusCode)
	}

	var e position.Entity
	if err := sonic.Unmarshal(body, &e); err != nil {
		return position.Entity{}, fmt.Errorf("decode position %s: %w", id, err)
	}
	if e.ID == "" {
		e.ID = id
	}
	return e, nil
}
