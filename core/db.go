package core

import (
	"strings"

	"github.com/volatiletech/strmangle"
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return strmangle.IdentQuote('"', '"', ord.Field) + " " + direction
}

// OrderByClause keeps the orderings whose field is in allowed and renders them as an ORDER BY list.
// returns `fallback` when nothing is left.
func OrderByClause(ordering []DBOrdering, allowed []string, fallback string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if strmangle.SetInclude(ord.Field, allowed) {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		return fallback
	}
	return strings.Join(orderList, ", ")
}
