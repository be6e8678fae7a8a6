package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

type FinanceCmd struct {
	Add     FinanceAddCmd     `cmd:"" help:"Record a transaction."`
	List    FinanceListCmd    `cmd:"" help:"List transactions." default:"1"`
	Summary FinanceSummaryCmd `cmd:"" help:"Summarize income and expenses."`
}

type FinanceAddCmd struct {
	Type        string  `arg:"" help:"Transaction type (income|expense)." enum:"income,expense"`
	Amount      float64 `arg:"" help:"Amount."`
	Category    string  `arg:"" help:"Category."`
	Date        string  `short:"d" help:"Date (YYYY-MM-DD)." default:"today"`
	Description string  `short:"D" help:"Description."`
}

func (cmd *FinanceAddCmd) Run(ctx *Context) error {
	date, err := parseDate(cmd.Date)
	if err != nil {
		return err
	}
	tx := models.FinanceTransaction{
		Type:        models.TransactionType(cmd.Type),
		Amount:      cmd.Amount,
		Category:    categoryName(models.TransactionType(cmd.Type), cmd.Category),
		Date:        date,
		Description: cmd.Description,
	}
	if _, err := ctx.dispatch(context.Background(), state.Add(state.FinanceTransactions, tx)); err != nil {
		return err
	}
	ctx.printf("Recorded %s: %.2f (%s) on %s\n", tx.Type, tx.Amount, tx.Category, tx.Date)
	return nil
}

// categoryName matches name case-insensitively against the known categories
// for t, keeping free-form names as given.
func categoryName(t models.TransactionType, name string) string {
	known := models.ExpenseCategories
	if t == models.TransactionIncome {
		known = models.IncomeCategories
	}
	for _, k := range known {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return name
}

type FinanceListCmd struct {
	Month string `short:"m" help:"Only this month (YYYY-MM)."`
}

func (cmd *FinanceListCmd) Run(ctx *Context) error {
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	var txs []models.FinanceTransaction
	for _, t := range s.State().FinanceTransactions {
		if strings.HasPrefix(t.Date, cmd.Month) {
			txs = append(txs, t)
		}
	}
	if len(txs) == 0 {
		ctx.printf("No transactions found\n")
		return nil
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date > txs[j].Date })
	for _, t := range txs {
		sign := "-"
		if t.Type == models.TransactionIncome {
			sign = "+"
		}
		ctx.printf("  %s  %s  %s%10.2f  %-14s %s\n", shortID(t.ID), t.Date, sign, t.Amount, t.Category, t.Description)
	}
	return nil
}

type FinanceSummaryCmd struct {
	Month string `short:"m" help:"Month to summarize (YYYY-MM, default this month); 'all' for everything."`
}

func (cmd *FinanceSummaryCmd) Run(ctx *Context) error {
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	month := cmd.Month
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	prefix := month
	if prefix == "all" {
		prefix = ""
	}
	st := s.State()
	totals := models.Summarize(st.FinanceTransactions, prefix)

	label := month
	if prefix == "" {
		label = "all time"
	}
	ctx.printf("Finance summary (%s):\n", label)
	ctx.printf("  Income:   %10.2f\n", totals.Income)
	ctx.printf("  Expenses: %10.2f\n", totals.Expense)
	ctx.printf("  Balance:  %10.2f\n", totals.Income-totals.Expense)

	if len(totals.ByCategory) == 0 {
		return nil
	}
	limits := make(map[string]float64)
	for _, b := range st.Budgets {
		if b.Month == "" || b.Month == month {
			limits[b.Category] = b.Limit
		}
	}
	categories := make([]string, 0, len(totals.ByCategory))
	for c := range totals.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	ctx.printf("  By category:\n")
	for _, c := range categories {
		spent := totals.ByCategory[c]
		line := fmt.Sprintf("    %-14s %10.2f", c, spent)
		if limit, ok := limits[c]; ok {
			line += fmt.Sprintf(" of %.2f", limit)
			if spent > limit {
				line += " ⚠ over budget"
			}
		}
		ctx.printf("%s\n", line)
	}
	return nil
}
