package api

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/ideabank/internal/models"
	"github.com/insightdelivered/ideabank/internal/parser"
)

const dateLayout = "2006-01-02"

// viewQuery is the query string of the dataset view endpoints.
type viewQuery struct {
	Subsystems []string `query:"subsystem" json:"subsystem"`
	Platforms  []string `query:"platform" json:"platform"`
	Statuses   []string `query:"status" json:"status"`
	From       string   `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To         string   `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
	Search     string   `query:"q" json:"q" validate:"max=200"`
	Sort       string   `query:"sort" json:"sort" validate:"omitempty,oneof=none asc desc"`
	Top        *int     `query:"top" json:"top" validate:"omitempty,min=0"`
	Format     string   `query:"format" json:"format" validate:"omitempty,oneof=csv xlsx"`
}

// loadRequest asks the server to fetch an export itself.
type loadRequest struct {
	URL   string `json:"url" validate:"required,http_url"`
	Sheet string `json:"sheet" validate:"max=31"`
	Name  string `json:"name" validate:"max=200"`
}

func newValidator() *validator.Validate {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns validator output into a single 400 error.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must be a date like 2024-01-31", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "http_url":
			msgs = append(msgs, fmt.Sprintf("%s must be an http(s) URL", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return fiber.NewError(fiber.StatusBadRequest, strings.Join(msgs, "; "))
}

// bindQuery reads and validates the view query of the current request.
func (h *Handler) bindQuery(c *fiber.Ctx) (viewQuery, error) {
	var q viewQuery
	if err := c.QueryParser(&q); err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid query: %v", err))
	}
	if err := h.validate.Struct(q); err != nil {
		return q, validationError(err)
	}
	return q, nil
}

// Query converts the request into an engine query. Filter values are
// normalized the same way parsed records are, so "chassis" selects
// "Chassis".
func (q viewQuery) Query() (models.Query, error) {
	var dates models.DateRange
	if q.From != "" {
		t, err := time.Parse(dateLayout, q.From)
		if err != nil {
			return models.Query{}, err
		}
		dates.Start = t
	}
	if q.To != "" {
		t, err := time.Parse(dateLayout, q.To)
		if err != nil {
			return models.Query{}, err
		}
		dates.End = t
	}
	if !dates.Start.IsZero() && !dates.End.IsZero() && dates.End.Before(dates.Start) {
		return models.Query{}, fiber.NewError(fiber.StatusBadRequest, "to must not be before from")
	}

	sort, err := models.ParseSortOrder(q.Sort)
	if err != nil {
		return models.Query{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	criteria := models.FilterCriteria{}.
		WithSubsystems(normalizeAll(q.Subsystems)...).
		WithPlatforms(normalizeAll(q.Platforms)...).
		WithStatuses(normalizeAll(q.Statuses)...).
		WithDates(dates)

	return models.Query{Criteria: criteria, Search: q.Search, Sort: sort}, nil
}

// TopN returns the requested group limit, or fallback when none was given.
func (q viewQuery) TopN(fallback int) int {
	if q.Top == nil {
		return fallback
	}
	return *q.Top
}

func normalizeAll(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, parser.Normalize(v))
	}
	return out
}
