package reports

import (
	"fmt"
	"io"
	"strconv"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const PDFContentType = "application/pdf"

func VoucherPDFFilename(voucher *models.Voucher) string {
	return fmt.Sprintf("verifikat_%d.pdf", voucher.VoucherNumber)
}

func formatCurrency(amount decimal.Decimal) string {
	return fmt.Sprintf("%.2f kr", amount.InexactFloat64())
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// WriteVoucherPDF renders an A4 voucher. accounts supplies the account names;
// a missing account prints with an empty name.
func WriteVoucherPDF(w io.Writer, voucher *models.Voucher, accounts map[int]*models.Account, companyName string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(fmt.Sprintf("Verifikat #%d", voucher.VoucherNumber)), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "Verifikat")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 8, fmt.Sprintf("Verifikat #%d", voucher.VoucherNumber))
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(30, 6, "Datum:")
	pdf.Cell(60, 6, voucher.Date.Format("2006-01-02"))
	pdf.Ln(6)

	pdf.Cell(30, 6, "Period:")
	pdf.Cell(60, 6, tr(models.PeriodLabel(voucher.Period)))
	pdf.Ln(6)

	if voucher.Reference != "" {
		pdf.Cell(30, 6, "Referens:")
		pdf.Cell(60, 6, tr(voucher.Reference))
		pdf.Ln(6)
	}

	pdf.Cell(30, 6, "Beskrivning:")
	pdf.MultiCell(150, 6, tr(voucher.Description), "", "", false)
	pdf.Ln(4)

	correctionNote := func(text string) {
		pdf.SetFont("Arial", "I", 9)
		pdf.SetTextColor(150, 0, 0)
		pdf.Cell(0, 6, tr(text))
		pdf.Ln(6)
		pdf.SetTextColor(0, 0, 0)
	}
	if voucher.CorrectsVoucherId != nil {
		correctionNote(fmt.Sprintf("Detta verifikat rättar verifikat id %d", *voucher.CorrectsVoucherId))
	}
	if voucher.CorrectedByVoucherId != nil {
		correctionNote(fmt.Sprintf("Detta verifikat har rättats av verifikat id %d", *voucher.CorrectedByVoucherId))
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(25, 8, "Konto", "1", 0, "C", true, 0, "")
	pdf.CellFormat(70, 8, "Kontonamn", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Debet", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Kredit", "1", 0, "R", true, 0, "")
	pdf.CellFormat(20, 8, "Moms", "1", 0, "C", true, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, line := range voucher.Lines {
		accountName := ""
		if account, ok := accounts[line.AccountNo]; ok {
			accountName = account.AccountName
		}
		debit, credit := "", ""
		if line.DebitAmount.IsPositive() {
			debit = formatCurrency(line.DebitAmount)
		}
		if line.CreditAmount.IsPositive() {
			credit = formatCurrency(line.CreditAmount)
		}
		pdf.CellFormat(25, 7, strconv.Itoa(line.AccountNo), "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 7, tr(truncateString(accountName, 35)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, debit, "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, credit, "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d%%", line.TaxCode), "1", 0, "C", false, 0, "")
		pdf.Ln(7)
	}

	balance := models.CalculateBalance(voucher.Drafts())
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(95, 8, "Summa:", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, formatCurrency(balance.TotalDebit), "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, formatCurrency(balance.TotalCredit), "1", 0, "R", true, 0, "")
	pdf.CellFormat(20, 8, "", "1", 0, "C", true, 0, "")
	pdf.Ln(12)

	if balance.IsBalanced {
		pdf.SetTextColor(0, 128, 0)
		pdf.Cell(0, 6, tr("Verifikatet är balanserat"))
	} else {
		pdf.SetTextColor(255, 0, 0)
		pdf.Cell(0, 6, tr("VARNING: Verifikatet är INTE balanserat!"))
	}
	pdf.SetTextColor(0, 0, 0)

	pdf.Ln(20)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.Cell(0, 5, tr("Genererad av "+companyName))

	return pdf.Output(w)
}
