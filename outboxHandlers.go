package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/gin-gonic/gin"
)

type outboxReplayRequest struct {
	RecordId int `json:"record_id" binding:"required,gt=0"`
}

func outboxStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := models.GetOutboxStatusCounts(c.Request.Context())
		if err != nil {
			respondError(c, "outboxStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"statuses": counts})
	}
}

// outboxReplayHandler makes a DEAD or FAILED voucher event due for the dispatcher again.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		record, err := models.ReplayOutboxRecord(c.Request.Context(), req.RecordId)
		if err != nil {
			respondError(c, "outboxReplayHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"record_id":       record.ID,
			"voucher_id":      record.VoucherId,
			"publish_status":  record.PublishStatus,
			"next_attempt_at": record.NextAttemptAt,
		})
	}
}
