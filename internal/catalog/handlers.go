package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abrium/abrium/internal/lifi"
	"github.com/abrium/abrium/internal/response"
	"github.com/abrium/abrium/internal/validation"
)

// Handler provides HTTP endpoints for the catalog
type Handler struct {
	service *Service
}

// NewHandler creates a new catalog handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up catalog routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/catalog/chains", h.ListChains)
	r.GET("/catalog/tokens", h.ListTokens)
}

// ListChains handles GET /catalog/chains?refresh=
func (h *Handler) ListChains(c *gin.Context) {
	chains, err := h.service.Chains(c.Request.Context(), isForceRefresh(c.Query("refresh")))
	if err != nil {
		response.Error(c, err.Error(), resolveStatusCode(err))
		return
	}
	response.OK(c, "Catalog chains fetched successfully", http.StatusOK, chains)
}

// ListTokens handles GET /catalog/tokens?chainId=&refresh=
func (h *Handler) ListTokens(c *gin.Context) {
	chainID, ok := validation.ParseChainID(c.Query("chainId"))
	if !ok {
		response.Error(c, "chainId must be a positive integer", http.StatusBadRequest)
		return
	}

	tokens, err := h.service.Tokens(c.Request.Context(), chainID, isForceRefresh(c.Query("refresh")))
	if err != nil {
		response.Error(c, err.Error(), resolveStatusCode(err))
		return
	}
	response.OK(c, "Catalog tokens fetched successfully", http.StatusOK, tokens)
}

func isForceRefresh(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true":
		return true
	}
	return false
}

// resolveStatusCode maps catalog failures onto HTTP statuses: unsupported
// chains are 404, upstream statuses pass through, everything else is 502.
func resolveStatusCode(err error) int {
	var notSupported *ChainNotSupportedError
	if errors.As(err, &notSupported) {
		return http.StatusNotFound
	}
	var apiErr *lifi.APIError
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
