package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core/scheme"
)

type schemeApi struct {
	svc      scheme.Service
	validate *validator.Validate
}

func registerSchemeAPI(g *echo.Group, svc scheme.Service, validate *validator.Validate) {
	api := schemeApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/schemes")
	sg.POST("", api.open)
	sg.GET("", api.query)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.discard)
	dg.GET("/total", api.total)
	dg.GET("/persistable", api.persistable)
	dg.POST("/save", api.save)

	dg.POST("/entries", api.addEntry)
	dg.PATCH("/entries/:index", api.updateEntry)
	dg.DELETE("/entries/:index", api.removeEntry)
}

type TotalResponse struct {
	Total float64 `json:"total"`
}

// Handlers

func (api *schemeApi) open(ctx echo.Context) error {
	var data scheme.NewDraft
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDraft")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	draft, err := api.svc.Open(ctx.Request().Context(), getContextSession(ctx), data)
	if err != nil {
		return errors.Wrap(err, "opening draft")
	}
	return ctx.JSON(http.StatusCreated, scheme.NewDraftView(draft))
}

func (api *schemeApi) query(ctx echo.Context) error {
	filter := new(scheme.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []scheme.DraftView{})
	}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)

	drafts, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying drafts")
	}

	views := make([]scheme.DraftView, 0, len(drafts))
	for _, d := range drafts {
		views = append(views, scheme.NewDraftView(d))
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *schemeApi) retrieve(ctx echo.Context) error {
	draft, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding draft by ID")
	}
	return ctx.JSON(http.StatusOK, scheme.NewDraftView(draft))
}

func (api *schemeApi) discard(ctx echo.Context) error {
	if err := api.svc.Discard(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "discarding draft")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schemeApi) total(ctx echo.Context) error {
	draft, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding draft by ID")
	}
	return ctx.JSON(http.StatusOK, TotalResponse{Total: draft.Total()})
}

func (api *schemeApi) persistable(ctx echo.Context) error {
	p, err := api.svc.Preview(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "previewing draft")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *schemeApi) save(ctx echo.Context) error {
	p, err := api.svc.Save(ctx.Request().Context(), getContextSession(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "saving draft")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *schemeApi) addEntry(ctx echo.Context) error {
	draft, err := api.svc.AddEntry(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "adding entry")
	}
	return ctx.JSON(http.StatusOK, scheme.NewDraftView(draft))
}

func (api *schemeApi) updateEntry(ctx echo.Context) error {
	index, err := bindIndex(ctx)
	if err != nil {
		return err
	}

	var data scheme.UpdateEntry
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEntry")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	draft, err := api.svc.UpdateEntry(ctx.Request().Context(), ctx.Param("id"), index, data)
	if err != nil {
		return errors.Wrap(err, "updating entry")
	}
	return ctx.JSON(http.StatusOK, scheme.NewDraftView(draft))
}

func (api *schemeApi) removeEntry(ctx echo.Context) error {
	index, err := bindIndex(ctx)
	if err != nil {
		return err
	}

	draft, err := api.svc.RemoveEntry(ctx.Request().Context(), ctx.Param("id"), index)
	if err != nil {
		return errors.Wrap(err, "removing entry")
	}
	return ctx.JSON(http.StatusOK, scheme.NewDraftView(draft))
}
