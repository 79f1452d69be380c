package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/dashboard"
)

// reservedParams are the list query params that are not equality filters.
var reservedParams = map[string]bool{
	"page":      true,
	"page_size": true,
	"search":    true,
	"fuzzy":     true,
	"ordering":  true,
	"scope":     true,
	"format":    true,
}

// bindQuery reads a dashboard.Query from the path and the query string;
// every non-reserved query param is an equality filter.
func bindQuery(ctx echo.Context) (dashboard.Query, error) {
	var q dashboard.Query
	if err := ctx.Bind(&q); err != nil {
		return q, errors.Wrap(err, "binding to Query")
	}
	q.Kind = ctx.Param("kind")

	for key, vals := range ctx.QueryParams() {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		if q.Equals == nil {
			q.Equals = make(map[string]string)
		}
		q.Equals[key] = vals[0]
	}
	return q, nil
}

type (
	DiffRequest struct {
		Original interface{} `json:"original" validate:"required"`
		Edited   interface{} `json:"edited" validate:"required"`
	}

	DiffResponse struct {
		Patch   interface{}            `json:"patch"`
		Fields  []string               `json:"fields"`
		Values  map[string]interface{} `json:"values"`
		Unified string                 `json:"unified,omitempty"`
	}

	MergeRequest struct {
		State   interface{} `json:"state" validate:"required"`
		Section string      `json:"section" validate:"required,fieldname"`
		Values  interface{} `json:"values" validate:"required"`
	}

	HealthResponse struct {
		Status string `json:"status"`
		Build  string `json:"build"`
		Env    string `json:"env"`
	}
)

func (r DiffRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (r MergeRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}
