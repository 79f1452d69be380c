package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/changeset"
)

type changesApi struct {
	validate *validator.Validate
}

func registerChangesAPI(g *echo.Group, validate *validator.Validate) {
	api := changesApi{validate: validate}

	cg := g.Group("/changes")
	cg.POST("", api.diff)
	cg.POST("/merge", api.merge)
}

// Handlers

func (api *changesApi) diff(ctx echo.Context) error {
	var data DiffRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DiffRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	change, err := changeset.Diff(data.Original, data.Edited)
	if err != nil {
		return errors.Wrap(err, "diffing")
	}
	unified, err := changeset.Unified(data.Original, data.Edited)
	if err != nil {
		return errors.Wrap(err, "rendering unified diff")
	}

	var patch interface{} = change.Patch
	if change.IsEmpty() {
		patch = []interface{}{}
	}
	return ctx.JSON(http.StatusOK, DiffResponse{
		Patch:   patch,
		Fields:  change.Fields,
		Values:  change.Values,
		Unified: unified,
	})
}

func (api *changesApi) merge(ctx echo.Context) error {
	var data MergeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MergeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	merged, err := changeset.MergeSection(data.State, data.Section, data.Values)
	if err != nil {
		return errors.Wrap(err, "merging section")
	}
	return ctx.JSON(http.StatusOK, merged)
}
