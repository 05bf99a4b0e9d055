package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

// OMIMClient maps disease registry ids onto their associated genes.
type OMIMClient struct {
	baseURL string
	apiKey  string
	caller  *caller
	cache   Cache
}

type geneMapResponse struct {
	Genes []domain.GeneRef `json:"genes"`
}

// NewOMIMClient creates a client. cache may be nil.
func NewOMIMClient(config domain.ServiceConfig, cache Cache, logger *logrus.Logger) *OMIMClient {
	return &OMIMClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		caller:  newCaller("omim", config, logger),
		cache:   cache,
	}
}

// GenesForDisease returns the (gene id, symbol) pairs mapped to registryID.
// Id 0 stands for "no registry id" and maps to no genes.
func (c *OMIMClient) GenesForDisease(ctx context.Context, registryID int) ([]domain.GeneRef, error) {
	if registryID <= 0 {
		return nil, nil
	}
	id := strconv.Itoa(registryID)

	return cached(ctx, c.cache, "omim:genes:"+id, func() ([]domain.GeneRef, error) {
		endpoint := fmt.Sprintf("%s/phenotype/%s/genes", c.baseURL, id)
		header := http.Header{}
		if c.apiKey != "" {
			header.Set("ApiKey", c.apiKey)
		}
		var resp geneMapResponse
		err := c.caller.call(ctx, id, func(ctx context.Context) error {
			return c.caller.doJSON(ctx, http.MethodGet, endpoint, header, nil, &resp)
		})
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.GeneRef{}, nil
		}
		if err != nil {
			return nil, err
		}
		if resp.Genes == nil {
			resp.Genes = []domain.GeneRef{}
		}
		return resp.Genes, nil
	})
}
