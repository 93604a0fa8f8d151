package ledger

// Operation names used for metrics, logs and user-facing failure messages.
const (
	opListCategories    = "list_categories"
	opAddCategory       = "add_category"
	opCreateTransaction = "create_transaction"
	opUpdateTransaction = "update_transaction"
	opDeleteTransaction = "delete_transaction"
	opGetTransaction    = "get_transaction"
	opListTransactions  = "list_transactions"
	opMonthlySummary    = "monthly_summary"
	opExpenseByCategory = "expense_by_category"
	opPreviousMonth     = "previous_month_summary"
	opComparison        = "comparison"
	opHistory           = "history"
	opTotalSummary      = "total_summary"
	opStatistics        = "statistics"
	opStatement         = "statement"
	opExport            = "export"
)

var failureMessages = map[string]string{
	opListCategories:    "Could not load categories.",
	opAddCategory:       "Could not create the category.",
	opCreateTransaction: "Could not save the transaction.",
	opUpdateTransaction: "Could not update the transaction.",
	opDeleteTransaction: "Could not delete the transaction.",
	opListTransactions:  "Could not load transactions.",
	opExport:            "Could not export transactions.",
	opStatement:         "Could not build the statement.",
}

func failureMessage(op string) string {
	if msg, ok := failureMessages[op]; ok {
		return msg
	}
	return "Could not load your financial data."
}
