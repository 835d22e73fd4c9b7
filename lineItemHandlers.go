package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/middlewares"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/gin-gonic/gin"
)

func respondLineItems(c *gin.Context, funcName string, lines []*models.LineItem) {
	values := make([]models.LineItem, 0, len(lines))
	for _, l := range lines {
		values = append(values, *l)
	}
	accounts, err := middlewares.AccountMap(c.Request.Context(), values)
	if err != nil {
		respondError(c, funcName, err)
		return
	}
	for _, l := range lines {
		l.Account = accounts[l.AccountNo]
	}
	c.JSON(http.StatusOK, gin.H{"line_items": lines, "count": len(lines)})
}

func getLineItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lineId, ok := intParam(c, "id")
		if !ok {
			return
		}
		line, err := models.GetLineItem(c.Request.Context(), lineId)
		if err != nil {
			respondError(c, "getLineItemHandler", err)
			return
		}
		if line.Account, err = middlewares.GetAccount(c.Request.Context(), line.AccountNo); err != nil {
			respondError(c, "getLineItemHandler", err)
			return
		}
		c.JSON(http.StatusOK, line)
	}
}

func lineItemsByVoucherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherId, ok := intParam(c, "voucherId")
		if !ok {
			return
		}
		lines, err := models.GetLineItemsByVoucher(c.Request.Context(), voucherId)
		if err != nil {
			respondError(c, "lineItemsByVoucherHandler", err)
			return
		}
		respondLineItems(c, "lineItemsByVoucherHandler", lines)
	}
}

func lineItemsByAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountNo, ok := intParam(c, "no")
		if !ok {
			return
		}
		lines, err := models.GetLineItemsByAccount(c.Request.Context(), accountNo)
		if err != nil {
			respondError(c, "lineItemsByAccountHandler", err)
			return
		}
		respondLineItems(c, "lineItemsByAccountHandler", lines)
	}
}

func createLineItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewLineItem
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		line, err := models.CreateLineItem(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createLineItemHandler", err)
			return
		}
		c.JSON(http.StatusCreated, line)
	}
}

func updateLineItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lineId, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input models.NewLineItem
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		line, err := models.UpdateLineItem(c.Request.Context(), lineId, &input)
		if err != nil {
			respondError(c, "updateLineItemHandler", err)
			return
		}
		c.JSON(http.StatusOK, line)
	}
}

func deleteLineItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lineId, ok := intParam(c, "id")
		if !ok {
			return
		}
		if _, err := models.DeleteLineItem(c.Request.Context(), lineId); err != nil {
			respondError(c, "deleteLineItemHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "line item deleted"})
	}
}
