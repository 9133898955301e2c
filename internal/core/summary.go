package core

// CategoryTotal is one row of the category breakdown.
type CategoryTotal struct {
	Category Category `json:"category"`
	Total    Money    `json:"total"`
	Count    int64    `json:"count"`
}

// PaymentMethodTotal is one row of the payment method breakdown.
type PaymentMethodTotal struct {
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Total         Money         `json:"total"`
	Count         int64         `json:"count"`
}

// TrendGroup aggregates the expenses sharing a calendar year, calendar month
// and ISO week number.
type TrendGroup struct {
	Year  int   `json:"year"`
	Month int   `json:"month"` // 1-12
	Week  int   `json:"week"`  // ISO 8601 week of year
	Total Money `json:"total"`
	Count int64 `json:"count"`
}

// Stats is the analytics document served to the dashboard.
type Stats struct {
	TotalSpending          Money                `json:"totalSpending"`
	AvgDailySpend          Money                `json:"avgDailySpend"`
	CategoryBreakdown      []CategoryTotal      `json:"categoryBreakdown"`
	MonthlyTrend           []TrendGroup         `json:"monthlyTrend"`
	ExpenseCount           int64                `json:"expenseCount"`
	TrendChange            float64              `json:"trendChange"`
	PaymentMethodBreakdown []PaymentMethodTotal `json:"paymentMethodBreakdown"`
}
