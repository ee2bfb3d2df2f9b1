package risk

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/abrium/abrium/internal/logging"
	"github.com/abrium/abrium/internal/response"
	"github.com/abrium/abrium/internal/validation"
)

// Handler provides HTTP endpoints for token risk lookups
type Handler struct {
	service *Service
}

// NewHandler creates a new risk handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up risk routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/risk/token", h.TokenRisk)
}

// TokenRisk handles GET /risk/token?chainId=&tokenAddress=
func (h *Handler) TokenRisk(c *gin.Context) {
	chainID, ok := validation.ParseChainID(c.Query("chainId"))
	if !ok {
		response.Error(c, "chainId must be a positive integer", http.StatusBadRequest)
		return
	}

	tokenAddress := c.Query("tokenAddress")
	if !common.IsHexAddress(tokenAddress) {
		response.Error(c, "tokenAddress must be a valid contract address", http.StatusBadRequest)
		return
	}

	evaluation, err := h.service.Assess(c.Request.Context(), chainID, tokenAddress)
	if err != nil {
		// Details stay in the logs; callers get a generic gateway failure.
		logging.L(c.Request.Context()).Error("token risk lookup failed",
			"chain_id", chainID, "token_address", tokenAddress, "error", err)
		response.Error(c, "Token risk lookup failed", http.StatusBadGateway)
		return
	}

	response.OK(c, "Token risk fetched successfully", http.StatusOK, evaluation)
}
