package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const productsCacheKey = "catalog:products"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUpstream        = errors.New("catalog upstream unavailable")
)

// Cache is the JSON cache the catalog is kept in
type Cache interface {
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// Service serves the product catalog from the upstream catalog API,
// cached for ttl
type Service struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	ttl        time.Duration
	logger     *zap.Logger
}

// NewService creates a catalog service. cache may be nil.
func NewService(baseURL string, timeout, ttl time.Duration, cache Cache) *Service {
	return &Service{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		ttl:        ttl,
		logger:     util.GetLogger(),
	}
}

// ListProducts returns the full catalog
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	if s.cache != nil {
		var products []models.Product
		found, err := s.cache.GetJSON(ctx, productsCacheKey, &products)
		if err != nil {
			s.logger.Warn("Catalog cache read failed", zap.Error(err))
		}
		if found {
			util.CatalogCacheTotal.WithLabelValues("hit").Inc()
			return products, nil
		}
		util.CatalogCacheTotal.WithLabelValues("miss").Inc()
	}

	products, err := s.fetchProducts(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, productsCacheKey, products, s.ttl); err != nil {
			s.logger.Warn("Catalog cache write failed", zap.Error(err))
		}
	}

	return products, nil
}

// GetProduct returns a single product from the catalog
func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
}

func (s *Service) fetchProducts(ctx context.Context) ([]models.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/products", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var products []models.Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	s.logger.Info("Catalog fetched from upstream", zap.Int("count", len(products)))
	return products, nil
}
