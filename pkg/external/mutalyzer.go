package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

// MutalyzerClient resolves dbSNP rs numbers into HGVS descriptions through
// the Mutalyzer JSON service.
type MutalyzerClient struct {
	baseURL string
	caller  *caller
	cache   Cache
}

// NewMutalyzerClient creates a client. cache may be nil.
func NewMutalyzerClient(config domain.ServiceConfig, cache Cache, logger *logrus.Logger) *MutalyzerClient {
	return &MutalyzerClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		caller:  newCaller("mutalyzer", config, logger),
		cache:   cache,
	}
}

// DescriptionsForRS returns the descriptions Mutalyzer suggests for rsNumber,
// best first. An unknown rs number yields an empty list.
func (c *MutalyzerClient) DescriptionsForRS(ctx context.Context, rsNumber string) ([]string, error) {
	rs := strings.ToLower(strings.TrimSpace(rsNumber))
	if rs == "" {
		return nil, fmt.Errorf("rs number cannot be empty")
	}
	if !strings.HasPrefix(rs, "rs") {
		rs = "rs" + rs
	}

	return cached(ctx, c.cache, "mutalyzer:"+rs, func() ([]string, error) {
		endpoint := fmt.Sprintf("%s/getdbSNPDescriptions?%s", c.baseURL, url.Values{"rs_id": {rs}}.Encode())
		var descriptions []string
		err := c.caller.call(ctx, rs, func(ctx context.Context) error {
			return c.caller.doJSON(ctx, http.MethodGet, endpoint, nil, nil, &descriptions)
		})
		if errors.Is(err, domain.ErrNotFound) {
			return []string{}, nil
		}
		if err != nil {
			return nil, err
		}
		if descriptions == nil {
			descriptions = []string{}
		}
		return descriptions, nil
	})
}
