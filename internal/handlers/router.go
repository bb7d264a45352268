package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the handlers into a gin engine. Signed routes live in a
// group running SignatureMiddleware.
func NewRouter(h *HTTPHandler, skew time.Duration, now func() time.Time) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), RequestIDMiddleware())

	h.RegisterPublicRoutes(r)

	signed := r.Group("/")
	signed.Use(SignatureMiddleware(skew, now))
	h.RegisterSignedRoutes(signed)
	return r
}
