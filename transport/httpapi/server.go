// Package httpapi is the JSON/HTTP collaborator transport (spec §6): a
// thin gin adapter translating POST /throttle and GET /health onto the
// actor, grounded on the gin server structure in
// frnd1406-NasServer/infrastructure/api.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ratelimitd/ratelimitd/internal/actor"
	"github.com/ratelimitd/ratelimitd/internal/metrics"
	"github.com/ratelimitd/ratelimitd/internal/types"
)

// throttleRequestDTO mirrors spec §6's JSON body: quantity and timestamp
// are optional, defaulting to 1 and server-now respectively.
type throttleRequestDTO struct {
	Key            string `json:"key" binding:"required"`
	MaxBurst       int64  `json:"max_burst" binding:"required"`
	CountPerPeriod int64  `json:"count_per_period" binding:"required"`
	Period         int64  `json:"period" binding:"required"`
	Quantity       *int64 `json:"quantity"`
	TimestampNanos *int64 `json:"timestamp"`
}

type throttleResponseDTO struct {
	Allowed    bool  `json:"allowed"`
	Limit      int64 `json:"limit"`
	Remaining  int64 `json:"remaining"`
	ResetAfter int64 `json:"reset_after"`
	RetryAfter int64 `json:"retry_after"`
}

// NewRouter builds the gin engine serving /throttle and /health.
func NewRouter(handle actor.Handle, m *metrics.Metrics, log *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	r.POST("/throttle", func(c *gin.Context) {
		var req throttleRequestDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		quantity := int64(1)
		if req.Quantity != nil {
			quantity = *req.Quantity
		}
		now := time.Now()
		if req.TimestampNanos != nil {
			now = time.Unix(0, *req.TimestampNanos)
		}

		allowed, verdict, err := handle.Throttle(c.Request.Context(), types.ThrottleRequest{
			Key:            req.Key,
			MaxBurst:       req.MaxBurst,
			CountPerPeriod: req.CountPerPeriod,
			PeriodSeconds:  req.Period,
			Quantity:       quantity,
			Timestamp:      now,
		}, now)
		if err != nil {
			if log != nil {
				log.WithError(err).Debug("throttle request rejected by engine")
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if m != nil {
			m.RecordDecisionForKey(allowed, req.Key)
		}

		resp := types.NewThrottleResponse(allowed, verdict.ToTypes())
		c.JSON(http.StatusOK, throttleResponseDTO{
			Allowed:    resp.Allowed,
			Limit:      resp.Limit,
			Remaining:  resp.Remaining,
			ResetAfter: resp.ResetAfterSeconds,
			RetryAfter: resp.RetryAfterSeconds,
		})
	})

	return r
}
