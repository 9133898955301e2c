package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"moneylens/internal/core"
	"moneylens/internal/query"
)

var sortFields = map[query.SortField]string{
	query.SortDate:          "date",
	query.SortAmount:        "amountCents",
	query.SortMerchant:      "merchant",
	query.SortCategory:      "category",
	query.SortPaymentMethod: "paymentMethod",
}

// expenseFilter always carries the owner equality.
func expenseFilter(userID string, rng query.Range, cat core.Category) bson.D {
	f := bson.D{{Key: "userId", Value: userID}}
	if !rng.From.IsZero() || !rng.To.IsZero() {
		date := bson.D{}
		if !rng.From.IsZero() {
			date = append(date, bson.E{Key: "$gte", Value: rng.From})
		}
		if !rng.To.IsZero() {
			date = append(date, bson.E{Key: "$lte", Value: rng.To})
		}
		f = append(f, bson.E{Key: "date", Value: date})
	}
	if cat != "" {
		f = append(f, bson.E{Key: "category", Value: string(cat)})
	}
	return f
}

func listSort(q query.ExpenseQuery) bson.D {
	dir := -1
	if q.Order == query.Asc {
		dir = 1
	}
	field, ok := sortFields[q.Sort]
	if !ok {
		field = "date"
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

func matchStage(q query.StatsQuery) bson.D {
	return bson.D{{Key: "$match", Value: expenseFilter(q.UserID, q.Range, "")}}
}

func summaryPipeline(q query.StatsQuery) mongo.Pipeline {
	return mongo.Pipeline{
		matchStage(q),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amountCents"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "first", Value: bson.D{{Key: "$min", Value: "$date"}}},
			{Key: "last", Value: bson.D{{Key: "$max", Value: "$date"}}},
		}}},
	}
}

// breakdownPipeline groups by field and orders by descending total.
func breakdownPipeline(q query.StatsQuery, field string) mongo.Pipeline {
	return mongo.Pipeline{
		matchStage(q),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amountCents"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}}}},
	}
}

// trendPipeline buckets by calendar year, calendar month and ISO week, all
// evaluated in UTC by the server.
func trendPipeline(q query.StatsQuery) mongo.Pipeline {
	return mongo.Pipeline{
		matchStage(q),
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "year", Value: bson.D{{Key: "$year", Value: "$date"}}},
				{Key: "month", Value: bson.D{{Key: "$month", Value: "$date"}}},
				{Key: "week", Value: bson.D{{Key: "$isoWeek", Value: "$date"}}},
			}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amountCents"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "_id.year", Value: 1},
			{Key: "_id.month", Value: 1},
			{Key: "_id.week", Value: 1},
		}}},
	}
}
