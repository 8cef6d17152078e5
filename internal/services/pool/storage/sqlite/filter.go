package sqlite

import (
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/filter"
)

var poolFilterColumns = filter.Columns{
	"issuer":       "issuer",
	"treasury":     "treasury",
	"distributor":  "distributor",
	"status":       "status",
	"target":       "target",
	"total_raised": "total_raised",
	"deadline":     "deadline",
	"created_at":   "created_at",
}

var eventFilterColumns = filter.Columns{
	"type":       "event_type",
	"actor":      "actor_id",
	"request_id": "request_id",
	"seq":        "seq",
	"ts":         "timestamp",
}

// filterClause renders e for a WHERE clause; timestamps bind as epoch millis.
func filterClause(e *filter.Expr, columns filter.Columns) (filter.SQLCondition, error) {
	return e.SQL(columns, func(t time.Time) any { return toMillis(t) })
}
