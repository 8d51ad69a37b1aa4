// Package api exposes the dashboard's JSON API over echo.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"crmsms/internal/engine"
	"crmsms/internal/export"
	"crmsms/internal/models"
	"crmsms/internal/query"
	"crmsms/internal/session"
	"crmsms/internal/warehouse"
)

const sessionCookie = "crmsms_session"

// Querier is the slice of the warehouse the handlers need. *warehouse.DB
// satisfies it; tests plug in stubs.
type Querier interface {
	Query(ctx context.Context, q string, args []any) (models.Table, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	wh       Querier
	sessions *session.Manager
	schema   query.Schema
	unitCost float64
	log      *zap.Logger
}

func NewHandler(wh Querier, sessions *session.Manager, schema query.Schema, unitCost float64, log *zap.Logger) *Handler {
	return &Handler{wh: wh, sessions: sessions, schema: schema, unitCost: unitCost, log: log}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/login", h.Login)

	api := e.Group("/api", h.requireSession)
	api.POST("/logout", h.Logout)
	api.GET("/warehouse/ping", h.WarehousePing)
	api.POST("/search", h.Search)
	api.POST("/selection/add", h.SelectionAdd)
	api.POST("/selection/remove", h.SelectionRemove)
	api.POST("/selection/clear", h.SelectionClear)
	api.GET("/selection", h.SelectionGet)
	api.GET("/selection/export", h.SelectionExport)
	api.POST("/selection/import", h.SelectionImport)
	api.GET("/export/cids", h.ExportCIDs)
}

// --- GATE ---

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"warning": "malformed request"})
	}
	sess, err := h.sessions.Login(req.Password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "wrong password"})
	}
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.log.Info("session opened", zap.String("session", sess.ID))
	return c.JSON(http.StatusOK, echo.Map{"session_id": sess.ID})
}

func (h *Handler) Logout(c echo.Context) error {
	sess := currentSession(c)
	h.sessions.Logout(sess.ID)
	c.SetCookie(&http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	h.log.Info("session closed", zap.String("session", sess.ID))
	return c.JSON(http.StatusOK, echo.Map{"status": "logged out"})
}

// requireSession resolves the session cookie (or X-Session-ID header) and
// rejects everything else with 401.
func (h *Handler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get("X-Session-ID")
		if id == "" {
			if cookie, err := c.Cookie(sessionCookie); err == nil {
				id = cookie.Value
			}
		}
		if id == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login required"})
		}
		sess, ok := h.sessions.Get(id)
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired or unknown"})
		}
		c.Set("session", sess)
		return next(c)
	}
}

func currentSession(c echo.Context) *session.Session {
	return c.Get("session").(*session.Session)
}

// --- SEARCH ---

type searchRequest struct {
	Brands   []string `json:"brands"`
	Keyword  string   `json:"keyword"`
	Mode     string   `json:"mode"` // "any" | "all"
	DateFrom string   `json:"date_from"`
	DateTo   string   `json:"date_to"`
}

type searchResponse struct {
	Rows    []models.StoreRow       `json:"rows"`
	Count   int                     `json:"count"`
	Cached  bool                    `json:"cached"`
	Filter  models.FilterDescriptor `json:"filter"`
	Message string                  `json:"message,omitempty"`
}

func (h *Handler) Search(c echo.Context) error {
	sess := currentSession(c)
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"warning": "malformed request"})
	}

	dates, err := parseDates(req.DateFrom, req.DateTo)
	if err != nil {
		return h.fail(c, err)
	}
	filter, err := query.BuildFilter(req.Keyword, models.JoinMode(req.Mode), req.Brands, dates, false)
	if err != nil {
		// Validation is non-fatal: warn, issue no query, leave prior results
		// and the accumulated selection untouched.
		return h.fail(c, err)
	}

	q, args := query.StoreSearch(h.schema, filter)
	table, hit, err := sess.Memo.GetOrFetch(warehouse.Key(q, args), func() (models.Table, error) {
		return h.wh.Query(c.Request().Context(), q, args)
	})
	if err != nil {
		return h.fail(c, err)
	}
	rows, err := models.StoreRowsFromTable(table)
	if err != nil {
		return h.fail(c, &models.QueryServiceError{Err: err})
	}

	sess.LastResults = rows
	sess.LastFilter = &filter

	resp := searchResponse{Rows: rows, Count: len(rows), Cached: hit, Filter: filter}
	if len(rows) == 0 {
		resp.Message = "no stores matched the search"
	}
	if resp.Rows == nil {
		resp.Rows = []models.StoreRow{}
	}
	return c.JSON(http.StatusOK, resp)
}

func parseDates(from, to string) (*models.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, models.Validation("purchase date range needs both start and end dates")
	}
	const layout = "2006-01-02"
	start, err := time.Parse(layout, from)
	if err != nil {
		return nil, models.Validation("start date: expected YYYY-MM-DD")
	}
	end, err := time.Parse(layout, to)
	if err != nil {
		return nil, models.Validation("end date: expected YYYY-MM-DD")
	}
	return &models.DateRange{Start: start, End: end}, nil
}

// --- SELECTION ---

type selectionRequest struct {
	StoreCodes []string `json:"store_codes"`
}

type selectionResponse struct {
	Rows    []models.StoreRow   `json:"rows"`
	Totals  models.CohortTotals `json:"totals"`
	Changed int                 `json:"changed,omitempty"`
}

func (h *Handler) SelectionAdd(c echo.Context) error {
	sess := currentSession(c)
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"warning": "malformed request"})
	}
	added := sess.Selection.Add(sess.LastResults, engine.KeySet(req.StoreCodes))
	return h.selectionJSON(c, sess, added)
}

func (h *Handler) SelectionRemove(c echo.Context) error {
	sess := currentSession(c)
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"warning": "malformed request"})
	}
	removed := sess.Selection.Remove(engine.KeySet(req.StoreCodes))
	return h.selectionJSON(c, sess, removed)
}

func (h *Handler) SelectionClear(c echo.Context) error {
	sess := currentSession(c)
	sess.Selection.Clear()
	return h.selectionJSON(c, sess, 0)
}

func (h *Handler) SelectionGet(c echo.Context) error {
	return h.selectionJSON(c, currentSession(c), 0)
}

func (h *Handler) selectionJSON(c echo.Context, sess *session.Session, changed int) error {
	rows := sess.Selection.Rows()
	return c.JSON(http.StatusOK, selectionResponse{
		Rows:    rows,
		Totals:  engine.Totals(rows, h.unitCost),
		Changed: changed,
	})
}

// --- EXPORT ---

func (h *Handler) SelectionExport(c echo.Context) error {
	sess := currentSession(c)
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="sms_target_counts_selected.csv"`)
	res.WriteHeader(http.StatusOK)
	return export.WriteStores(res, sess.Selection.Rows())
}

func (h *Handler) SelectionImport(c echo.Context) error {
	sess := currentSession(c)
	rows, err := export.ReadStores(c.Request().Body)
	if err != nil {
		return h.fail(c, models.Validation("import: %v", err))
	}
	codes := make([]string, len(rows))
	for i, r := range rows {
		codes[i] = r.StoreCode
	}
	added := sess.Selection.Add(rows, engine.KeySet(codes))
	return h.selectionJSON(c, sess, added)
}

func (h *Handler) ExportCIDs(c echo.Context) error {
	sess := currentSession(c)

	cohort := models.Cohort(c.QueryParam("cohort"))
	if cohort == "" {
		cohort = models.CohortUnion
	}
	if sess.LastFilter == nil {
		return h.fail(c, models.Validation("run a search first to set the brand filter"))
	}
	q, args, err := query.CIDExport(h.schema, sess.LastFilter.Brands, sess.Selection.Codes(), cohort, sess.LastFilter.Dates)
	if err != nil {
		return h.fail(c, err)
	}

	table, _, err := sess.Memo.GetOrFetch(warehouse.Key(q, args), func() (models.Table, error) {
		return h.wh.Query(c.Request().Context(), q, args)
	})
	if err != nil {
		return h.fail(c, err)
	}
	cids, err := table.Column("cid")
	if err != nil {
		return h.fail(c, &models.QueryServiceError{Err: err})
	}

	// The screen shows counts only; identifiers ship in the file.
	if c.QueryParam("count") == "1" {
		return c.JSON(http.StatusOK, echo.Map{"cohort": cohort, "count": len(cids)})
	}
	if len(cids) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"cohort": cohort, "count": 0,
			"message": "no contact identifiers matched in the selected stores"})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="cid_list.csv"`)
	res.WriteHeader(http.StatusOK)
	return export.WriteCIDs(res, cids)
}

// --- DIAGNOSTICS ---

func (h *Handler) WarehousePing(c echo.Context) error {
	if err := h.wh.Ping(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// fail maps the error taxonomy onto HTTP statuses. Validation is a warning;
// warehouse failures pass through verbatim for the operator to read.
func (h *Handler) fail(c echo.Context, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"warning": verr.Reason})
	}
	var qerr *models.QueryServiceError
	if errors.As(err, &qerr) {
		h.log.Warn("warehouse failure", zap.Error(qerr.Err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": qerr.Error()})
	}
	h.log.Error("unexpected failure", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
}
