package reports

import (
	"fmt"
	"io"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"github.com/xuri/excelize/v2"
)

const ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExcelExporter interface {
	GetCellValues() []interface{}
}

type ledgerRow struct {
	*models.LedgerEntry
}

func (r ledgerRow) GetCellValues() []interface{} {
	return []interface{}{
		r.Date.Format("2006-01-02"),
		r.VoucherNumber,
		r.Description,
		r.DebitAmount.InexactFloat64(),
		r.CreditAmount.InexactFloat64(),
		r.Balance.InexactFloat64(),
	}
}

type incomeStatementRow struct {
	section string
	*IncomeStatementEntry
}

func (r incomeStatementRow) GetCellValues() []interface{} {
	return []interface{}{r.section, r.AccountNo, r.AccountName, r.Balance.InexactFloat64()}
}

type totalRow struct {
	label string
	value interface{}
}

func (r totalRow) GetCellValues() []interface{} {
	return []interface{}{r.label, "", "", r.value}
}

// WriteLedgerExcel writes the ledger of one account as an xlsx workbook.
func WriteLedgerExcel(w io.Writer, ledger *models.Ledger) error {
	data := make([]ExcelExporter, 0, len(ledger.Entries))
	for _, e := range ledger.Entries {
		data = append(data, ledgerRow{e})
	}
	title := fmt.Sprintf("Huvudbok %d %s", ledger.Account.AccountNo, ledger.Account.AccountName)
	if ledger.Period != "" {
		title += ", " + models.PeriodLabel(ledger.Period)
	}
	footer := []ExcelExporter{
		totalRow{"Ingående balans", ledger.OpeningBalance.InexactFloat64()},
		totalRow{"Utgående balans", ledger.ClosingBalance.InexactFloat64()},
	}
	return exportExcel(w, title, data, footer, "Datum", "Verifikat", "Beskrivning", "Debet", "Kredit", "Saldo")
}

func WriteIncomeStatementExcel(w io.Writer, statement *IncomeStatement) error {
	data := make([]ExcelExporter, 0, len(statement.Income)+len(statement.Expenses))
	for _, e := range statement.Income {
		data = append(data, incomeStatementRow{"Intäkter", e})
	}
	for _, e := range statement.Expenses {
		data = append(data, incomeStatementRow{"Kostnader", e})
	}
	title := fmt.Sprintf("Resultaträkning %s - %s", statement.Period.FromDate, statement.Period.ToDate)
	footer := []ExcelExporter{
		totalRow{"Summa intäkter", statement.TotalIncome.InexactFloat64()},
		totalRow{"Summa kostnader", statement.TotalExpenses.InexactFloat64()},
		totalRow{"Resultat", statement.NetResult.InexactFloat64()},
	}
	return exportExcel(w, title, data, footer, "Avsnitt", "Konto", "Kontonamn", "Belopp")
}

// exportExcel lays out a title row, a heading row, the data rows and
// then the footer rows.
func exportExcel(w io.Writer, title string, data []ExcelExporter, footer []ExcelExporter, headings ...string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Sheet1"

	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return err
	}
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	rowNo := 3
	for _, rows := range [][]ExcelExporter{data, footer} {
		for _, d := range rows {
			for i, value := range d.GetCellValues() {
				cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheetName, cell, value); err != nil {
					return err
				}
			}
			rowNo++
		}
	}

	return f.Write(w)
}
