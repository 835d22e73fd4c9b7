package main

import (
	"bytes"
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/models/reports"
	"github.com/gin-gonic/gin"
)

func incomeStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		statement, err := reports.GetIncomeStatement(c.Request.Context(), c.Query("from_date"), c.Query("to_date"))
		if err != nil {
			respondError(c, "incomeStatementHandler", err)
			return
		}
		c.JSON(http.StatusOK, statement)
	}
}

func incomeStatementExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, toDate := c.Query("from_date"), c.Query("to_date")
		statement, err := reports.GetIncomeStatement(c.Request.Context(), fromDate, toDate)
		if err != nil {
			respondError(c, "incomeStatementExportHandler", err)
			return
		}
		var buf bytes.Buffer
		if err := reports.WriteIncomeStatementExcel(&buf, statement); err != nil {
			respondError(c, "incomeStatementExportHandler", err)
			return
		}
		filename := fmt.Sprintf("resultatrakning_%s_%s.xlsx", fromDate, toDate)
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, reports.ExcelContentType, buf.Bytes())
	}
}
