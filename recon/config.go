package recon

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FieldClass drives which tolerance applies during comparison.
type FieldClass string

const (
	FieldClassCurrency FieldClass = "currency"
	FieldClassPercent  FieldClass = "percent"
	FieldClassQuantity FieldClass = "quantity"
	FieldClassText     FieldClass = "text"
)

// Config is the explicit policy for one reconciliation. Thresholds,
// tolerances and precedence are configuration, not constants baked into
// the engine.
type Config struct {
	// FuzzyThreshold is the minimum similarity score for a fallback
	// description match against the billing master.
	FuzzyThreshold float64 `validate:"gt=0,lte=1"`

	// CommitThreshold is the minimum match confidence for an entry to
	// be auto-committed. Exact key matches carry confidence 1.0.
	CommitThreshold float64 `validate:"gt=0,lte=1"`

	// CurrencyTolerance is the absolute tolerance for currency fields.
	CurrencyTolerance decimal.Decimal

	// PercentTolerance is the relative tolerance for percentage fields
	// (0.001 means 0.1%).
	PercentTolerance decimal.Decimal

	// FieldClasses maps canonical numeric field names to their class.
	// Unlisted numeric fields compare exactly.
	FieldClasses map[string]FieldClass `validate:"required"`

	// AuthoritativeFields marks fields whose conflicts are blocking
	// (pricing rules). Conflicts on other fields are informational.
	AuthoritativeFields map[string]bool `validate:"required"`

	// Precedence lists, per canonical field, the source order consulted
	// during merge; the first contributing source with a value wins.
	// Fields without an entry use DefaultPrecedence.
	Precedence map[string][]Source `validate:"required"`

	// DefaultPrecedence applies to fields not listed in Precedence.
	DefaultPrecedence []Source `validate:"required,min=1"`

	// RequiredFields must be present on a merged row for its entry to
	// be committable.
	RequiredFields []string
}

// DefaultConfig returns the policy described in the operating
// procedure: authoritative pricing fields follow the billing master and
// SOP reference, transactional request fields follow the credit file.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:    0.85,
		CommitThreshold:   0.85,
		CurrencyTolerance: decimal.New(1, -2),  // 0.01
		PercentTolerance:  decimal.New(1, -3),  // 0.1%
		FieldClasses: map[string]FieldClass{
			FieldUnitPrice:          FieldClassCurrency,
			FieldCorrectedUnitPrice: FieldClassCurrency,
			FieldExtendedPrice:      FieldClassCurrency,
			FieldExtendedCorrect:    FieldClassCurrency,
			FieldCreditTotal:        FieldClassCurrency,
			FieldMarginPct:          FieldClassPercent,
			FieldQty:                FieldClassQuantity,
		},
		AuthoritativeFields: map[string]bool{
			FieldUnitPrice:          true,
			FieldCorrectedUnitPrice: true,
			FieldMarginPct:          true,
			FieldCategory:           true,
			FieldRtnCrNo:            true,
		},
		Precedence: map[string][]Source{
			FieldUnitPrice:          {SourceMaster, SourceSOP, SourceCredit},
			FieldCorrectedUnitPrice: {SourceMaster, SourceSOP, SourceCredit},
			FieldMarginPct:          {SourceMaster, SourceSOP, SourceCredit},
			FieldCategory:           {SourceMaster, SourceSOP, SourceCredit},
			FieldRtnCrNo:            {SourceMaster, SourceSOP, SourceCredit},
			FieldQty:                {SourceCredit, SourceSOP, SourceMaster},
			FieldExtendedPrice:      {SourceCredit, SourceSOP, SourceMaster},
			FieldCreditTotal:        {SourceCredit, SourceSOP, SourceMaster},
			FieldRequestedBy:        {SourceCredit, SourceSOP, SourceMaster},
			FieldReason:             {SourceCredit, SourceSOP, SourceMaster},
			FieldCustomerNo:         {SourceCredit, SourceMaster, SourceSOP},
			FieldDescription:        {SourceCredit, SourceMaster, SourceSOP},
		},
		DefaultPrecedence: []Source{SourceCredit, SourceSOP, SourceMaster},
		RequiredFields:    []string{FieldUnitPrice},
	}
}

var validate = validator.New()

// Validate checks the config for internal consistency.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.CurrencyTolerance.IsNegative() {
		return fmt.Errorf("currency tolerance must not be negative")
	}
	if c.PercentTolerance.IsNegative() {
		return fmt.Errorf("percent tolerance must not be negative")
	}
	for field, order := range c.Precedence {
		if len(order) == 0 {
			return fmt.Errorf("precedence for %q is empty", field)
		}
	}
	return nil
}
