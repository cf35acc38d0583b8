package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-grading/core"
)

var (
	orderingParam = "ordering"
	indexParam    = "index"

	errIndexNotInteger = "must be an integer"
)

// Ordering binds the `ordering` query param: comma separated fields, "-" prefixed for descending order.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindIndex reads the position of an entry from the path.
func bindIndex(ctx echo.Context) (int, error) {
	index, err := strconv.Atoi(ctx.Param(indexParam))
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: indexParam, Error: errIndexNotInteger})
	}
	return index, nil
}
