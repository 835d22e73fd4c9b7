package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models/reports"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var badRequestErrors = []error{
	models.ErrVoucherNotBalanced,
	models.ErrVoucherZeroTotal,
	models.ErrVoucherTooFewLines,
	models.ErrVoucherDateRequired,
	models.ErrPeriodMismatch,
	models.ErrLineBothSides,
	models.ErrLineNoAmount,
	models.ErrLineNegativeAmount,
	models.ErrLineInvalidTaxCode,
	models.ErrLineVoucherRequired,
	models.ErrLineVoucherChange,
	models.ErrInvalidPeriod,
	models.ErrInvalidDate,
	models.ErrInvalidAccountGroup,
	reports.ErrReportDatesRequired,
	reports.ErrReportDateOrder,
}

var conflictErrors = []error{
	models.ErrAccountExists,
	models.ErrAccountInUse,
	models.ErrEmailTaken,
	models.ErrVoucherLocked,
	utils.ErrLockNotObtained,
}

// errorStatus maps a domain error to its HTTP status and the message shown to the client.
func errorStatus(err error) (int, string) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return http.StatusBadRequest, utils.ValidationMessage(err)
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, utils.ErrorUnauthorized), errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrSessionRevoked):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, utils.ErrorForbidden):
		return http.StatusForbidden, err.Error()
	case workflow.IsCorrectionRejected(err), utils.IsDuplicateKeyError(err):
		return http.StatusConflict, err.Error()
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict, err.Error()
		}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// respondError writes {"error": msg}; unexpected errors are logged and never returned raw.
func respondError(c *gin.Context, funcName string, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "api", funcName, c.Request.Method+" "+c.FullPath(), map[string]string{"correlation_id": cid}, err)
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// respondBindError answers a request body that could not be decoded or failed its binding tags.
func respondBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ValidationMessage(err)})
		return
	}
	if errors.Is(err, models.ErrInvalidDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

// intParam parses a positive path parameter; it answers 400 itself when the value is bad.
func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return n, true
}
