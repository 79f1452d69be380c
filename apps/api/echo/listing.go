package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/dashboard"
	exportsvc "github.com/trezcool/masomo-console/services/export"
)

type listingApi struct {
	svc *dashboard.Service
}

func registerListingAPI(g *echo.Group, svc *dashboard.Service) {
	api := listingApi{svc: svc}

	g.GET("/entities", api.definitions)
	g.GET("/:kind", api.list)
	g.GET("/:kind/stats", api.stats)
	g.GET("/:kind/export", api.export)
	g.POST("/:kind/:id/changes", api.submit)
}

// Handlers

func (api *listingApi) definitions(ctx echo.Context) error {
	op, err := getContextOperator(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context operator")
	}
	return ctx.JSON(http.StatusOK, api.svc.Definitions(op))
}

func (api *listingApi) list(ctx echo.Context) error {
	op, err := getContextOperator(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context operator")
	}
	q, err := bindQuery(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.List(ctx.Request().Context(), op, q)
	if err != nil {
		return errors.Wrapf(err, "listing %s", q.Kind)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *listingApi) stats(ctx echo.Context) error {
	op, err := getContextOperator(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context operator")
	}
	q, err := bindQuery(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.Stats(ctx.Request().Context(), op, q)
	if err != nil {
		return errors.Wrapf(err, "aggregating %s", q.Kind)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *listingApi) export(ctx echo.Context) error {
	op, err := getContextOperator(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context operator")
	}
	format, err := exportsvc.ParseFormat(ctx.QueryParam("format"))
	if err != nil {
		return err
	}
	q, err := bindQuery(ctx)
	if err != nil {
		return err
	}

	exp, err := api.svc.Export(ctx.Request().Context(), op, q)
	if err != nil {
		return errors.Wrapf(err, "exporting %s", q.Kind)
	}
	var buf bytes.Buffer
	if err := exportsvc.Write(&buf, format, exp); err != nil {
		return errors.Wrapf(err, "rendering %s export", q.Kind)
	}

	filename := exportsvc.Filename(exp.Title, format, time.Now())
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	if !exp.Complete {
		ctx.Response().Header().Set("X-Export-Truncated", "true")
	}
	return ctx.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (api *listingApi) submit(ctx echo.Context) error {
	op, err := getContextOperator(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context operator")
	}
	var data dashboard.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	data.Kind = ctx.Param("kind")
	data.ID = ctx.Param("id")

	res, err := api.svc.Submit(ctx.Request().Context(), op, data)
	if err != nil {
		return errors.Wrapf(err, "submitting %s %s", data.Kind, data.ID)
	}
	return ctx.JSON(http.StatusOK, res)
}
