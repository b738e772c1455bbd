package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/tathmini/core"
)

var groupParam = "group"

// GroupFilter binds the `group` query param: repeated and/or comma separated group ids.
type GroupFilter struct {
	IDs []string
}

func (f *GroupFilter) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	for _, val := range data[groupParam] {
		for _, id := range strings.Split(val, ",") {
			if id = core.CleanString(id); id != "" {
				f.IDs = append(f.IDs, id)
			}
		}
	}
}
