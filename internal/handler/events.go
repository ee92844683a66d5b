package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ArRuslan/ticketer/internal/apperr"
	"github.com/ArRuslan/ticketer/internal/repository"
	"github.com/ArRuslan/ticketer/internal/service/tickets"
)

// EventHandler serves the public event view.
type EventHandler struct {
	Tickets *tickets.Service
}

func NewEventHandler(t *tickets.Service) *EventHandler {
	return &EventHandler{Tickets: t}
}

type eventWithPlansJSON struct {
	eventJSON
	Plans []planJSON `json:"plans,omitempty"`
}

// GetEvent handles GET /v1/events/:id.  Each plan carries the number of
// units still available.
func (h *EventHandler) GetEvent(c echo.Context) error {
	id, err := pathID(c, "id", apperr.UnknownEvent)
	if err != nil {
		return err
	}
	event, plans, err := h.Tickets.Event(c.Request().Context(), id)
	if err != nil {
		return err
	}
	out := eventWithPlansJSON{eventJSON: toEventJSON(event), Plans: make([]planJSON, 0, len(plans))}
	for _, p := range plans {
		pj := toPlanJSON(p.Plan)
		available := p.Available
		pj.Available = &available
		out.Plans = append(out.Plans, pj)
	}
	return c.JSON(http.StatusOK, out)
}

type searchReq struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	TimeMin  int64  `json:"time_min"`
	TimeMax  int64  `json:"time_max"`
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// Search handles POST /v1/events/search.  Filters come in the body;
// sort_by, sort_direction, page, results_per_page and with_plans in the
// query string.
func (h *EventHandler) Search(c echo.Context) error {
	var req searchReq
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("results_per_page"))
	if perPage == 0 {
		perPage = 10
	}
	withPlans, _ := strconv.ParseBool(c.QueryParam("with_plans"))

	q := repository.EventSearchQuery{
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		TimeMin:  unixPtr(req.TimeMin),
		TimeMax:  unixPtr(req.TimeMax),
		SortBy:   c.QueryParam("sort_by"),
		SortDesc: strings.EqualFold(c.QueryParam("sort_direction"), "desc"),
		Page:     page,
		PageSize: perPage,
	}
	hits, err := h.Tickets.SearchEvents(c.Request().Context(), q, withPlans)
	if err != nil {
		return err
	}
	out := make([]eventWithPlansJSON, 0, len(hits))
	for _, hit := range hits {
		ej := eventWithPlansJSON{eventJSON: toEventJSON(hit.Event)}
		if withPlans {
			ej.Plans = make([]planJSON, 0, len(hit.Plans))
			for _, p := range hit.Plans {
				ej.Plans = append(ej.Plans, toPlanJSON(p))
			}
		}
		out = append(out, ej)
	}
	return c.JSON(http.StatusOK, out)
}
