package models

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func init() {
	// amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

var validate = newValidator()

// newValidator reads the same `binding` tags gin uses, so models validate
// identically whether input came through HTTP or the admin CLI.
func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

type AccountType string

const (
	AccountTypeBalanceSheet  AccountType = "BS"
	AccountTypeProfitAndLoss AccountType = "P&L"
)

type StandardSide string

const (
	StandardSideDebit  StandardSide = "Debit"
	StandardSideCredit StandardSide = "Credit"
)

type TaxStandard string

const (
	TaxStandard0  TaxStandard = "0%"
	TaxStandard6  TaxStandard = "6%"
	TaxStandard12 TaxStandard = "12%"
	TaxStandard25 TaxStandard = "25%"
)

type CorrectionKind string

const (
	CorrectionKindNone        CorrectionKind = ""
	CorrectionKindReversal    CorrectionKind = "Reversal"
	CorrectionKindReplacement CorrectionKind = "Replacement"
)

type CorrectionState string

const (
	CorrectionStateOpen       CorrectionState = "Open"
	CorrectionStateCorrected  CorrectionState = "Corrected"
	CorrectionStateCorrection CorrectionState = "Correction"
)

type VoucherEventType string

const (
	VoucherEventCreated   VoucherEventType = "voucher.created"
	VoucherEventUpdated   VoucherEventType = "voucher.updated"
	VoucherEventDeleted   VoucherEventType = "voucher.deleted"
	VoucherEventCorrected VoucherEventType = "voucher.corrected"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

const dateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// FlexibleDate accepts "2006-01-02" as well as RFC3339 in JSON input and
// always normalizes to midnight UTC.
type FlexibleDate time.Time

func (d *FlexibleDate) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*d = FlexibleDate(time.Time{})
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = FlexibleDate(t)
	return nil
}

func (d FlexibleDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(d).Format(dateLayout) + `"`), nil
}

func (d FlexibleDate) Time() time.Time {
	return time.Time(d)
}

func (d FlexibleDate) IsZero() bool {
	return time.Time(d).IsZero()
}

// ParseDate parses a calendar date ("2006-01-02" or RFC3339) to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
