package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/middlewares"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func setupRouter(logger *logrus.Logger, requireRedis bool) *gin.Engine {
	r := gin.New()
	r.Use(correlationIdMiddleware())
	r.Use(readinessGate(requireRedis))
	r.Use(corsMiddleware())
	if rateLimiter := rateLimiterFromEnv(); rateLimiter != nil {
		r.Use(rateLimiter.RateLimitMiddleware)
	}
	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/login", loginHandler())
	auth.POST("/register", registerHandler())
	auth.POST("/logout", middlewares.RequireAuth(), logoutHandler())
	auth.POST("/logout-all", middlewares.RequireAuth(), logoutAllHandler())
	auth.GET("/me", middlewares.RequireAuth(), meHandler())
	auth.POST("/refresh", middlewares.RequireAuth(), refreshHandler())

	protected := api.Group("", middlewares.RequireAuth())
	adminOnly := middlewares.RequireRole(utils.RoleAdmin)

	accounts := protected.Group("/accounts")
	accounts.GET("", listAccountsHandler())
	accounts.GET("/group/:group", accountsByGroupHandler())
	accounts.GET("/:no", getAccountHandler())
	accounts.GET("/:no/ledger", ledgerHandler())
	accounts.GET("/:no/ledger/export", ledgerExportHandler())
	accounts.POST("", adminOnly, createAccountHandler())
	accounts.PUT("/:no", adminOnly, updateAccountHandler())
	accounts.DELETE("/:no", adminOnly, deleteAccountHandler())

	vouchers := protected.Group("/vouchers")
	vouchers.GET("", listVouchersHandler())
	vouchers.GET("/periods", voucherPeriodsHandler())
	vouchers.GET("/period/:period", vouchersByPeriodHandler())
	vouchers.GET("/user/:userId", vouchersByUserHandler())
	vouchers.GET("/:id", getVoucherHandler())
	vouchers.GET("/:id/validate", validateVoucherHandler())
	vouchers.GET("/:id/pdf", voucherPdfHandler())
	vouchers.POST("", createVoucherHandler())
	vouchers.POST("/:id/correct", correctVoucherHandler())
	vouchers.POST("/:id/correct-with-changes", correctVoucherWithChangesHandler())
	vouchers.PUT("/:id", adminOnly, updateVoucherHandler())
	vouchers.DELETE("/:id", adminOnly, deleteVoucherHandler())

	lineItems := protected.Group("/lineitems")
	lineItems.GET("/voucher/:voucherId", lineItemsByVoucherHandler())
	lineItems.GET("/account/:no", lineItemsByAccountHandler())
	lineItems.GET("/:id", getLineItemHandler())
	lineItems.POST("", createLineItemHandler())
	lineItems.PUT("/:id", updateLineItemHandler())
	lineItems.DELETE("/:id", deleteLineItemHandler())

	reportsGroup := protected.Group("/reports")
	reportsGroup.GET("/income-statement", incomeStatementHandler())
	reportsGroup.GET("/income-statement/export", incomeStatementExportHandler())

	// Ops tooling: outbox status and replay of DEAD/FAILED voucher events.
	ops := protected.Group("/internal/ops", adminOnly)
	ops.GET("/outbox", outboxStatusHandler())
	ops.POST("/outbox/replay", outboxReplayHandler())

	r.NoRoute(customNotFoundHandler)
	return r
}
