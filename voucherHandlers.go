package main

import (
	"bytes"
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/middlewares"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models/reports"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type periodOption struct {
	Period string `json:"period"`
	Label  string `json:"label"`
}

// attachAccounts fills line.Account and the creator's name through the
// request loaders.
func attachAccounts(ctx context.Context, vouchers ...*models.Voucher) error {
	var lines []models.LineItem
	userIds := make([]int, 0, len(vouchers))
	for _, v := range vouchers {
		lines = append(lines, v.Lines...)
		userIds = append(userIds, v.CreatedBy)
	}
	accounts, err := middlewares.AccountMap(ctx, lines)
	if err != nil {
		return err
	}
	users, errs := middlewares.GetUsers(ctx, userIds)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for i, v := range vouchers {
		for j := range v.Lines {
			v.Lines[j].Account = accounts[v.Lines[j].AccountNo]
		}
		if users[i] != nil {
			v.CreatedByName = users[i].Name
		}
	}
	return nil
}

func respondVoucherList(c *gin.Context, funcName string, vouchers []*models.Voucher, extra gin.H) {
	if err := attachAccounts(c.Request.Context(), vouchers...); err != nil {
		respondError(c, funcName, err)
		return
	}
	body := gin.H{"vouchers": vouchers, "count": len(vouchers)}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func listVouchersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vouchers, err := models.GetVouchers(c.Request.Context())
		if err != nil {
			respondError(c, "listVouchersHandler", err)
			return
		}
		respondVoucherList(c, "listVouchersHandler", vouchers, nil)
	}
}

func vouchersByPeriodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		period := c.Param("period")
		vouchers, err := models.GetVouchersByPeriod(c.Request.Context(), period)
		if err != nil {
			respondError(c, "vouchersByPeriodHandler", err)
			return
		}
		respondVoucherList(c, "vouchersByPeriodHandler", vouchers, gin.H{"period": period})
	}
}

func vouchersByUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := intParam(c, "userId")
		if !ok {
			return
		}
		vouchers, err := models.GetVouchersByUser(c.Request.Context(), userId)
		if err != nil {
			respondError(c, "vouchersByUserHandler", err)
			return
		}
		respondVoucherList(c, "vouchersByUserHandler", vouchers, gin.H{"user_id": userId})
	}
}

func voucherPeriodsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		periods, err := models.GetPeriods(c.Request.Context())
		if err != nil {
			respondError(c, "voucherPeriodsHandler", err)
			return
		}
		options := make([]periodOption, 0, len(periods))
		for _, p := range periods {
			options = append(options, periodOption{Period: p, Label: models.PeriodLabel(p)})
		}
		c.JSON(http.StatusOK, gin.H{"periods": options})
	}
}

func getVoucherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherId, ok := intParam(c, "id")
		if !ok {
			return
		}
		voucher, err := models.GetVoucher(c.Request.Context(), voucherId)
		if err != nil {
			respondError(c, "getVoucherHandler", err)
			return
		}
		if err := attachAccounts(c.Request.Context(), voucher); err != nil {
			respondError(c, "getVoucherHandler", err)
			return
		}
		c.JSON(http.StatusOK, voucher)
	}
}

func validateVoucherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherId, ok := intParam(c, "id")
		if !ok {
			return
		}
		result, err := models.ValidateVoucher(c.Request.Context(), voucherId)
		if err != nil {
			respondError(c, "validateVoucherHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func createVoucherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewVoucher
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		voucher, err := models.CreateVoucher(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createVoucherHandler", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "voucher created", "voucher": voucher})
	}
}

func updateVoucherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherId, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input models.NewVoucher
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		voucher, err := models.UpdateVoucher(c.Request.Context(), voucherId, &input)
		if err != nil {
			respondError(c, "updateVoucherHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "voucher updated", "voucher": voucher})
	}
}

func deleteVoucherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherId, ok := intParam(c, "id")
		if !ok {
			return
		}
		if _, err := models.DeleteVoucher(c.Request.Context(), voucherId); err != nil {
			respondError(c, "deleteVoucherHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "voucher deleted"})
	}
}

func correctVoucherHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherId, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input workflow.CorrectVoucherInput
		// An empty body corrects on behalf of the session user.
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				respondBindError(c, err)
				return
			}
		}
		correction, err := workflow.CorrectVoucher(c.Request.Context(), voucherId, input)
		if err != nil {
			respondError(c, "correctVoucherHandler", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "voucher corrected", "voucher": correction})
	}
}

func correctVoucherWithChangesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherId, ok := intParam(c, "id")
		if !ok {
			return
		}
		var input workflow.CorrectWithChangesInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		correction, err := workflow.CorrectVoucherWithChanges(c.Request.Context(), voucherId, input)
		if err != nil {
			respondError(c, "correctVoucherWithChangesHandler", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "voucher corrected with changes", "voucher": correction})
	}
}

func voucherPdfHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		voucherId, ok := intParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		voucher, err := models.GetVoucher(ctx, voucherId)
		if err != nil {
			respondError(c, "voucherPdfHandler", err)
			return
		}
		accounts, err := middlewares.AccountMap(ctx, voucher.Lines)
		if err != nil {
			respondError(c, "voucherPdfHandler", err)
			return
		}
		var buf bytes.Buffer
		if err := reports.WriteVoucherPDF(&buf, voucher, accounts, config.GetCompanyName()); err != nil {
			respondError(c, "voucherPdfHandler", err)
			return
		}

		filename := reports.VoucherPDFFilename(voucher)
		if utils.ArchiveEnabled() {
			// The download does not depend on the archive copy.
			if _, err := utils.UploadToGCS(ctx, "vouchers/"+filename, reports.PDFContentType, buf.Bytes()); err != nil {
				config.GetLogger().WithFields(logrus.Fields{
					"voucher_id": voucher.VoucherId,
					"object":     "vouchers/" + filename,
				}).Warn("voucher pdf archive failed: " + err.Error())
			}
		}

		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, reports.PDFContentType, buf.Bytes())
	}
}
