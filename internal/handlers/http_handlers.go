package handlers

import (
	"encoding/csv"
	"errors"
	"math"
	"net/http"
	"strconv"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/ledger"
	"lottery-ledger/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

const defaultTransferPage = 100

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service *services.LotteryService
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// RegisterPublicRoutes registers the routes anyone may call.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRoutes) {
	router.GET("/healthz", h.Health)
	router.GET("/rounds/active", h.GetActiveRound)
	router.GET("/rounds/:number", h.GetRound)
	router.GET("/rounds/:number/vault", h.GetVault)
	router.POST("/rounds/:number/finalize", h.FinalizeRound)
	router.GET("/positions/:address", h.GetPosition)
	router.GET("/users/:address", h.GetProfile)
	router.GET("/transfers", h.ListTransfers)
	router.GET("/transfers.csv", h.ExportTransfersCSV)
	router.GET("/addresses/round/:number", h.DeriveRound)
	router.GET("/addresses/vault/:number", h.DeriveVault)
	router.GET("/addresses/profile/:user", h.DeriveProfile)
	router.GET("/addresses/ticket/:round/:buyer/:start", h.DeriveTicketPosition)
}

// RegisterSignedRoutes registers the routes acting for a wallet. The group
// must run SignatureMiddleware.
func (h *HTTPHandler) RegisterSignedRoutes(router gin.IRoutes) {
	router.POST("/users/activate", h.ActivateUser)
	router.POST("/rounds/:number/tickets", h.BuyTickets)
	router.POST("/rounds/:number/claim", h.ClaimPrize)
}

// Health reports liveness and the configured program.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"program": h.service.Resolver().Program(),
	})
}

type buyRequest struct {
	Count int `json:"count"`
}

type claimRequest struct {
	Position address.Address `json:"position" binding:"required"`
}

// ActivateUser activates the signing wallet.
func (h *HTTPHandler) ActivateUser(c *gin.Context) {
	profile, err := h.service.ActivateUser(c.Request.Context(), signerFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// BuyTickets buys tickets for the signing wallet.
func (h *HTTPHandler) BuyTickets(c *gin.Context) {
	n, ok := roundParam(c, "number")
	if !ok {
		return
	}
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Count < 1 || req.Count > math.MaxUint8 {
		writeError(c, services.ErrInvalidTicketCount)
		return
	}

	receipt, err := h.service.BuyTickets(c.Request.Context(), signerFrom(c), n, uint8(req.Count))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// FinalizeRound closes an expired round. Repeating it is harmless.
func (h *HTTPHandler) FinalizeRound(c *gin.Context) {
	n, ok := roundParam(c, "number")
	if !ok {
		return
	}
	round, err := h.service.FinalizeRound(c.Request.Context(), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}

// ClaimPrize pays the signing wallet if it holds the winning position.
func (h *HTTPHandler) ClaimPrize(c *gin.Context) {
	n, ok := roundParam(c, "number")
	if !ok {
		return
	}
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	payout, err := h.service.ClaimPrize(c.Request.Context(), signerFrom(c), n, req.Position)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

// GetActiveRound returns the round buyers should target. "round" is null
// when that round has not been opened yet.
func (h *HTTPHandler) GetActiveRound(c *gin.Context) {
	n, round, err := h.service.CurrentRound(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roundNumber": n, "round": round})
}

func (h *HTTPHandler) GetRound(c *gin.Context) {
	n, ok := roundParam(c, "number")
	if !ok {
		return
	}
	round, err := h.service.Round(c.Request.Context(), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}

func (h *HTTPHandler) GetVault(c *gin.Context) {
	n, ok := roundParam(c, "number")
	if !ok {
		return
	}
	vault, err := h.service.Vault(c.Request.Context(), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, vault)
}

func (h *HTTPHandler) GetPosition(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	pos, err := h.service.Position(c.Request.Context(), addr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (h *HTTPHandler) GetProfile(c *gin.Context) {
	user, ok := addressParam(c, "address")
	if !ok {
		return
	}
	profile, err := h.service.Profile(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListTransfers pages through the transfer journal with ?after=&limit=.
func (h *HTTPHandler) ListTransfers(c *gin.Context) {
	after, limit, ok := pageParams(c)
	if !ok {
		return
	}
	transfers, err := h.service.Transfers(c.Request.Context(), after, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	fees, err := h.service.FeeSink(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": transfers, "feeSink": fees})
}

// ExportTransfersCSV handles the request to download a page of the journal as a CSV file.
func (h *HTTPHandler) ExportTransfersCSV(c *gin.Context) {
	after, limit, ok := pageParams(c)
	if !ok {
		return
	}
	transfers, err := h.service.Transfers(c.Request.Context(), after, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=transfers.csv")

	w := csv.NewWriter(c.Writer)
	if err := w.Write([]string{"seq", "kind", "from", "to", "amount", "round", "timestamp"}); err != nil {
		logger.Errorf("Error writing CSV header: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	for _, t := range transfers {
		row := []string{
			strconv.FormatUint(t.Seq, 10),
			string(t.Kind),
			t.From.String(),
			t.To.String(),
			strconv.FormatUint(t.Amount, 10),
			strconv.FormatUint(t.RoundNumber, 10),
			strconv.FormatInt(t.Timestamp, 10),
		}
		if err := w.Write(row); err != nil {
			logger.Errorf("Error writing CSV row: %v", err)
			return
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logger.Errorf("Error flushing CSV writer: %v", err)
	}
}

type derivedAddress struct {
	Address address.Address `json:"address"`
	Bump    uint8           `json:"bump"`
}

func (h *HTTPHandler) DeriveRound(c *gin.Context) {
	n, ok := roundParam(c, "number")
	if !ok {
		return
	}
	addr, bump := h.service.Resolver().Round(n)
	c.JSON(http.StatusOK, derivedAddress{addr, bump})
}

func (h *HTTPHandler) DeriveVault(c *gin.Context) {
	n, ok := roundParam(c, "number")
	if !ok {
		return
	}
	addr, bump := h.service.Resolver().Vault(n)
	c.JSON(http.StatusOK, derivedAddress{addr, bump})
}

func (h *HTTPHandler) DeriveProfile(c *gin.Context) {
	user, ok := addressParam(c, "user")
	if !ok {
		return
	}
	addr, bump := h.service.Resolver().UserProfile(user)
	c.JSON(http.StatusOK, derivedAddress{addr, bump})
}

func (h *HTTPHandler) DeriveTicketPosition(c *gin.Context) {
	round, ok := addressParam(c, "round")
	if !ok {
		return
	}
	buyer, ok := addressParam(c, "buyer")
	if !ok {
		return
	}
	start, err := strconv.ParseUint(c.Param("start"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}
	addr, bump := h.service.Resolver().TicketPosition(round, buyer, start)
	c.JSON(http.StatusOK, derivedAddress{addr, bump})
}

func roundParam(c *gin.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, err)
		return 0, false
	}
	return n, true
}

func addressParam(c *gin.Context, name string) (address.Address, bool) {
	a, err := address.Parse(c.Param(name))
	if err != nil {
		badRequest(c, err)
		return address.Zero, false
	}
	return a, true
}

func pageParams(c *gin.Context) (uint64, int, bool) {
	after, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return 0, 0, false
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultTransferPage)))
	if err != nil || limit <= 0 {
		badRequest(c, errors.New("limit must be a positive integer"))
		return 0, 0, false
	}
	return after, limit, true
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    int    `json:"code,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: err.Error()})
}

func writeError(c *gin.Context, err error) {
	if le, ok := services.AsLotteryError(err); ok {
		c.AbortWithStatusJSON(statusFor(le), ErrorResponse{Code: le.Code, Error: le.Name, Message: le.Message})
		return
	}
	if errors.Is(err, ledger.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "NotFound", Message: err.Error()})
		return
	}
	logger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal", Message: "internal error"})
}

func statusFor(le *services.LotteryError) int {
	switch le {
	case services.ErrInvalidTicketCount:
		return http.StatusBadRequest
	case services.ErrUserNotActivated, services.ErrNotWinner, services.ErrInvalidWinner:
		return http.StatusForbidden
	case services.ErrMathOverflow:
		return http.StatusUnprocessableEntity
	case services.ErrInvalidAdminWallet:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}
