package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/insightdelivered/ideabank/internal/engine"
	"github.com/insightdelivered/ideabank/internal/models"
	"github.com/insightdelivered/ideabank/internal/parser"
	"github.com/insightdelivered/ideabank/internal/source"
	"github.com/insightdelivered/ideabank/internal/writer"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ParseResponse is the JSON response from /api/ideas/parse.
type ParseResponse struct {
	Success  bool                  `json:"success"`
	Ideas    []models.Idea         `json:"ideas"`
	Report   parser.Report         `json:"report"`
	Summary  models.Summary        `json:"summary"`
	Defaults models.FilterCriteria `json:"defaults"`
}

// DatasetResponse describes a stored dataset.
type DatasetResponse struct {
	Success  bool                  `json:"success"`
	ID       string                `json:"id"`
	Name     string                `json:"name,omitempty"`
	Count    int                   `json:"count"`
	Report   parser.Report         `json:"report"`
	Defaults models.FilterCriteria `json:"defaults"`
}

// IdeasResponse is one filtered, searched and sorted view.
type IdeasResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Ideas   []models.Idea `json:"ideas"`
}

// SummaryResponse carries the statistics of a view.
type SummaryResponse struct {
	Success bool           `json:"success"`
	Summary models.Summary `json:"summary"`
}

// OptionsResponse lists the selectable values of one field.
type OptionsResponse struct {
	Success bool                 `json:"success"`
	Field   models.Field         `json:"field"`
	Options []models.OptionCount `json:"options"`
}

// ErrorResponse is the envelope of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Version          string
	TopN             int
	ExcludedStatuses []string
	Fetch            source.HTTPOptions
	// AllowedHosts limits URL loading; empty refuses every URL.
	AllowedHosts []string

	store    *Store
	metrics  *Metrics
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler wires a handler with its own store and metrics.
func NewHandler(logger *zap.Logger, version string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Version:  version,
		TopN:     10,
		store:    NewStore(),
		metrics:  NewMetrics(),
		validate: newValidator(),
		logger:   logger.Named("api"),
	}
}

// Store exposes the dataset store.
func (h *Handler) Store() *Store { return h.store }

// RegisterRoutes sets up the API routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/metrics", h.metrics.Handler())

	api := app.Group("/api")
	api.Get("/health", h.HandleHealth)
	api.Post("/ideas/parse", h.HandleParse)

	ds := api.Group("/datasets")
	ds.Post("/", h.HandleCreateDataset)
	ds.Get("/:id/ideas", h.HandleIdeas)
	ds.Get("/:id/summary", h.HandleSummary)
	ds.Get("/:id/options/:field", h.HandleOptions)
	ds.Get("/:id/export", h.HandleExport)
	ds.Delete("/:id", h.HandleDeleteDataset)
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": h.Version,
		"engine":  "fiber",
	})
}

// HandleParse parses an uploaded export without storing it.
func (h *Handler) HandleParse(c *fiber.Ctx) error {
	text, name, err := h.readExport(c)
	if err != nil {
		return err
	}

	report, err := h.parse(name, text)
	if err != nil {
		return err
	}

	return c.JSON(ParseResponse{
		Success:  true,
		Ideas:    report.Ideas,
		Report:   report,
		Summary:  engine.Summarize(report.Ideas, h.TopN),
		Defaults: engine.DefaultCriteria(report.Ideas, h.ExcludedStatuses...),
	})
}

// HandleCreateDataset parses an export and keeps it for later queries.
func (h *Handler) HandleCreateDataset(c *fiber.Ctx) error {
	text, name, err := h.readExport(c)
	if err != nil {
		return err
	}

	report, err := h.parse(name, text)
	if err != nil {
		return err
	}

	ds := h.store.Add(&Dataset{
		Name:     name,
		Ideas:    report.Ideas,
		Report:   report,
		Defaults: engine.DefaultCriteria(report.Ideas, h.ExcludedStatuses...),
	})
	h.metrics.DatasetLoaded()
	h.logger.Info("dataset stored",
		zap.String("id", ds.ID),
		zap.String("name", ds.Name),
		zap.Int("ideas", len(ds.Ideas)),
	)

	return c.Status(fiber.StatusCreated).JSON(DatasetResponse{
		Success:  true,
		ID:       ds.ID,
		Name:     ds.Name,
		Count:    len(ds.Ideas),
		Report:   ds.Report,
		Defaults: ds.Defaults,
	})
}

// HandleIdeas returns one view of a stored dataset.
func (h *Handler) HandleIdeas(c *fiber.Ctx) error {
	ds, q, err := h.view(c)
	if err != nil {
		return err
	}
	query, err := q.Query()
	if err != nil {
		return err
	}

	ideas := engine.Apply(ds.Ideas, query)
	return c.JSON(IdeasResponse{Success: true, Count: len(ideas), Ideas: ideas})
}

// HandleSummary returns the statistics of one view of a stored dataset.
func (h *Handler) HandleSummary(c *fiber.Ctx) error {
	ds, q, err := h.view(c)
	if err != nil {
		return err
	}
	query, err := q.Query()
	if err != nil {
		return err
	}

	summary := engine.Summarize(engine.Apply(ds.Ideas, query), q.TopN(h.TopN))
	return c.JSON(SummaryResponse{Success: true, Summary: summary})
}

// HandleOptions lists the values of a field over the whole dataset.
func (h *Handler) HandleOptions(c *fiber.Ctx) error {
	ds, err := h.dataset(c)
	if err != nil {
		return err
	}
	field, err := models.ParseField(c.Params("field"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(OptionsResponse{
		Success: true,
		Field:   field,
		Options: engine.Options(ds.Ideas, field),
	})
}

// HandleExport downloads one view as CSV or as an Excel workbook.
func (h *Handler) HandleExport(c *fiber.Ctx) error {
	ds, q, err := h.view(c)
	if err != nil {
		return err
	}
	query, err := q.Query()
	if err != nil {
		return err
	}
	ideas := engine.Apply(ds.Ideas, query)

	var buf bytes.Buffer
	switch q.Format {
	case "", "csv":
		w := &writer.CSVWriter{}
		if err := w.Write(&buf, ideas); err != nil {
			return fmt.Errorf("CSV generation failed: %w", err)
		}
		c.Attachment("ideas.csv")
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	case "xlsx":
		w := &writer.XLSXWriter{}
		if err := w.Write(&buf, ideas, engine.Summarize(ideas, q.TopN(h.TopN))); err != nil {
			return fmt.Errorf("workbook generation failed: %w", err)
		}
		c.Attachment("ideas.xlsx")
		c.Set(fiber.HeaderContentType, xlsxContentType)
	}
	return c.Send(buf.Bytes())
}

// HandleDeleteDataset forgets a stored dataset.
func (h *Handler) HandleDeleteDataset(c *fiber.Ctx) error {
	id := c.Params("id")
	if !h.store.Delete(id) {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("dataset %q not found", id))
	}
	h.metrics.DatasetDropped()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) parse(name, text string) (parser.Report, error) {
	report := parser.ParseReport(text)
	h.metrics.ObserveReport(report)
	h.logger.Debug("export parsed",
		zap.String("name", name),
		zap.Int("rows", report.Rows),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.RejectedTotal()),
	)
	if report.Accepted == 0 {
		return report, parser.ErrNoValidData
	}
	return report, nil
}

func (h *Handler) dataset(c *fiber.Ctx) (*Dataset, error) {
	id := c.Params("id")
	ds, ok := h.store.Get(id)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("dataset %q not found", id))
	}
	return ds, nil
}

func (h *Handler) view(c *fiber.Ctx) (*Dataset, viewQuery, error) {
	ds, err := h.dataset(c)
	if err != nil {
		return nil, viewQuery{}, err
	}
	q, err := h.bindQuery(c)
	if err != nil {
		return nil, viewQuery{}, err
	}
	return ds, q, nil
}

// readExport returns the export text of the request: a multipart "file"
// upload, a JSON {"url": ...} asking the server to fetch it, or the raw body.
func (h *Handler) readExport(c *fiber.Ctx) (string, string, error) {
	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		fh, err := c.FormFile("file")
		if err != nil {
			return "", "", fiber.NewError(fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
		}
		f, err := fh.Open()
		if err != nil {
			return "", "", fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()

		switch strings.ToLower(filepath.Ext(fh.Filename)) {
		case ".xlsx", ".xlsm":
			text, err := source.WorkbookText(f, c.FormValue("sheet"))
			if err != nil {
				return "", "", fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
			}
			return text, fh.Filename, nil
		}
		data, err := io.ReadAll(f)
		if err != nil {
			return "", "", fmt.Errorf("failed to read upload: %w", err)
		}
		return string(data), fh.Filename, nil

	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		var req loadRequest
		if err := c.BodyParser(&req); err != nil {
			return "", "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		}
		if err := h.validate.Struct(req); err != nil {
			return "", "", validationError(err)
		}
		text, err := h.fetch(c, req)
		if err != nil {
			return "", "", err
		}
		name := req.Name
		if name == "" {
			name = req.URL
		}
		return text, name, nil

	case strings.HasPrefix(contentType, xlsxContentType):
		text, err := source.WorkbookText(bytes.NewReader(c.Body()), c.Query("sheet"))
		if err != nil {
			return "", "", fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return text, c.Query("name"), nil
	}

	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "Empty request. Upload form field 'file' or send the export as the body.")
	}
	return string(body), c.Query("name"), nil
}

// errHostNotAllowed marks fetches outside Handler.AllowedHosts.
var errHostNotAllowed = errors.New("host is not in IDEABANK_FETCH_ALLOWED_HOSTS")

// hostAllowed reports whether u points at an allow-listed host. Entries match
// the bare hostname or host:port.
func (h *Handler) hostAllowed(u *url.URL) bool {
	for _, allowed := range h.AllowedHosts {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if strings.EqualFold(allowed, u.Hostname()) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

func (h *Handler) fetch(c *fiber.Ctx, req loadRequest) (string, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid url: %v", err))
	}
	if !h.hostAllowed(u) {
		h.logger.Warn("fetch refused", zap.String("host", u.Host))
		return "", fiber.NewError(fiber.StatusForbidden, fmt.Sprintf("%s: %s", u.Host, errHostNotAllowed))
	}

	opts := h.Fetch
	base := opts.Client
	if base == nil {
		base = http.DefaultClient
	}
	client := *base
	client.CheckRedirect = func(next *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if !h.hostAllowed(next.URL) {
			return fmt.Errorf("redirect to %s: %w", next.URL.Host, errHostNotAllowed)
		}
		return nil
	}
	opts.Client = &client

	src, err := source.New(source.KindHTTP, req.URL, source.Options{HTTP: opts})
	if err != nil {
		return "", err
	}
	text, err := src.Load(c.UserContext())
	if err != nil {
		h.logger.Warn("fetch failed", zap.String("url", req.URL), zap.Error(err))
		if errors.Is(err, errHostNotAllowed) {
			return "", fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		return "", fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	if req.Sheet != "" || looksLikeWorkbook(text) {
		text, err = source.WorkbookText(strings.NewReader(text), req.Sheet)
		if err != nil {
			return "", fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
	}
	return text, nil
}

// looksLikeWorkbook reports whether data starts with the zip signature all
// xlsx files carry.
func looksLikeWorkbook(data string) bool {
	return strings.HasPrefix(data, "PK\x03\x04")
}

// ErrorHandler writes every error as an ErrorResponse.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
		case errors.Is(err, parser.ErrNoValidData):
			code = fiber.StatusUnprocessableEntity
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return c.Status(code).JSON(ErrorResponse{Success: false, Error: err.Error()})
	}
}
