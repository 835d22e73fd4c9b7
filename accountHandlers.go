package main

import (
	"bytes"
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models/reports"
	"github.com/gin-gonic/gin"
)

func listAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := models.GetAccounts(c.Request.Context())
		if err != nil {
			respondError(c, "listAccountsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts, "count": len(accounts)})
	}
}

func accountsByGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		group, ok := intParam(c, "group")
		if !ok {
			return
		}
		accounts, err := models.GetAccountsByGroup(c.Request.Context(), group)
		if err != nil {
			respondError(c, "accountsByGroupHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts, "count": len(accounts), "group": group})
	}
}

func getAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountNo, ok := intParam(c, "no")
		if !ok {
			return
		}
		account, err := models.GetAccount(c.Request.Context(), accountNo)
		if err != nil {
			respondError(c, "getAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func createAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAccount
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		account, err := models.CreateAccount(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createAccountHandler", err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

func updateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountNo, ok := intParam(c, "no")
		if !ok {
			return
		}
		var input models.AccountUpdate
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		account, err := models.UpdateAccount(c.Request.Context(), accountNo, &input)
		if err != nil {
			respondError(c, "updateAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

func deleteAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountNo, ok := intParam(c, "no")
		if !ok {
			return
		}
		if _, err := models.DeleteAccount(c.Request.Context(), accountNo); err != nil {
			respondError(c, "deleteAccountHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
	}
}

func ledgerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountNo, ok := intParam(c, "no")
		if !ok {
			return
		}
		ledger, err := models.GetLedger(c.Request.Context(), accountNo, c.Query("period"))
		if err != nil {
			respondError(c, "ledgerHandler", err)
			return
		}
		c.JSON(http.StatusOK, ledger)
	}
}

func ledgerExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountNo, ok := intParam(c, "no")
		if !ok {
			return
		}
		period := c.Query("period")
		ledger, err := models.GetLedger(c.Request.Context(), accountNo, period)
		if err != nil {
			respondError(c, "ledgerExportHandler", err)
			return
		}
		var buf bytes.Buffer
		if err := reports.WriteLedgerExcel(&buf, ledger); err != nil {
			respondError(c, "ledgerExportHandler", err)
			return
		}
		filename := fmt.Sprintf("huvudbok_%d.xlsx", accountNo)
		if period != "" {
			filename = fmt.Sprintf("huvudbok_%d_%s.xlsx", accountNo, period)
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, reports.ExcelContentType, buf.Bytes())
	}
}
