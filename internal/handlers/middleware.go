package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	signerKey       = "signer"
	maxBodyBytes    = 1 << 16
)

// RequestIDMiddleware tags every request with an id, reusing the caller's
// when it sent one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// SignatureMiddleware authenticates the wallet behind a request and stores
// it for the handlers. Requests whose timestamp is further than skew from
// now are rejected, and so is a signature seen before within that window.
func SignatureMiddleware(skew time.Duration, now func() time.Time) gin.HandlerFunc {
	replays := auth.NewReplayCache(skew)
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			badRequest(c, err)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		at := now()
		signer, err := auth.VerifyRequest(c.Request, body, at, skew)
		if err == nil {
			err = replays.Mark(signer, c.GetHeader(auth.HeaderSignature), at)
		}
		if err != nil {
			logger.Warningf("Rejected %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			code := "Unauthorized"
			switch {
			case errors.Is(err, auth.ErrStale):
				code = "StaleRequest"
			case errors.Is(err, auth.ErrReplayed):
				code = "ReplayedRequest"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: code, Message: err.Error()})
			return
		}
		c.Set(signerKey, signer)
		c.Next()
	}
}

func signerFrom(c *gin.Context) address.Address {
	v, _ := c.Get(signerKey)
	a, _ := v.(address.Address)
	return a
}
