package models

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Categories offered by the finance views for each transaction type.
var (
	IncomeCategories  = []string{"Job", "Freelance", "Investment", "Gift", "Other"}
	ExpenseCategories = []string{"Food", "Rent", "Transportation", "Entertainment", "Utilities", "Health", "Shopping", "Other"}
)

type FinanceTransaction struct {
	Meta
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Amount      float64         `json:"amount"`
	Date        string          `json:"date"` // YYYY-MM-DD
	Description string          `json:"description,omitempty"`
}

func (t FinanceTransaction) Validate() error {
	if t.Type != TransactionIncome && t.Type != TransactionExpense {
		return invalid("finance transaction type %q must be income or expense", t.Type)
	}
	if err := required("finance transaction", "category", t.Category); err != nil {
		return err
	}
	if t.Amount < 0 {
		return invalid("finance transaction amount must not be negative")
	}
	if err := required("finance transaction", "date", t.Date); err != nil {
		return err
	}
	return checkDate("finance transaction", "date", t.Date)
}

type Budget struct {
	Meta
	Category string  `json:"category"`
	Limit    float64 `json:"limit"`
	Month    string  `json:"month,omitempty"` // YYYY-MM
}

func (b Budget) Validate() error {
	if err := required("budget", "category", b.Category); err != nil {
		return err
	}
	if b.Limit < 0 {
		return invalid("budget limit must not be negative")
	}
	return nil
}

// Totals sums income and expenses, with expenses broken down by category.
type Totals struct {
	Income     float64            `json:"income"`
	Expense    float64            `json:"expense"`
	ByCategory map[string]float64 `json:"by_category"`
}

// Summarize totals the transactions whose date starts with prefix
// (e.g. "2026-10" for a month, "" for everything).
func Summarize(txs []FinanceTransaction, prefix string) Totals {
	totals := Totals{ByCategory: make(map[string]float64)}
	for _, t := range txs {
		if len(t.Date) < len(prefix) || t.Date[:len(prefix)] != prefix {
			continue
		}
		switch t.Type {
		case TransactionIncome:
			totals.Income += t.Amount
		case TransactionExpense:
			totals.Expense += t.Amount
			totals.ByCategory[t.Category] += t.Amount
		}
	}
	return totals
}
