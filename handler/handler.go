// Package handler provides the HTTP read/write surface over the store.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stevemurr/vacancy-store/mapper"
	"github.com/stevemurr/vacancy-store/model"
	"github.com/stevemurr/vacancy-store/schema"
	"github.com/stevemurr/vacancy-store/store"
)

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store  store.Store
	mapper *mapper.Mapper
	log    zerolog.Logger
	engine *gin.Engine
}

// New creates a Handler and wires up all routes. allowedOrigins lists the
// CORS origins; a single "*" allows any.
func New(s store.Store, m *mapper.Mapper, log zerolog.Logger, allowedOrigins []string) *Handler {
	h := &Handler{
		store:  s,
		mapper: m,
		log:    log.With().Str("component", "http").Logger(),
		engine: gin.New(),
	}
	h.engine.Use(gin.Recovery(), requestLogger(h.log), cors(allowedOrigins))
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := h.engine
	r.GET("/", h.root)
	r.GET("/health", h.health)

	r.GET("/collections", h.listCollections)
	r.GET("/collections/:name", h.getHeader)
	r.GET("/collections/:name/records", h.selectRecords)
	r.PATCH("/collections/:name/records", h.updateRecords)
	r.DELETE("/collections/:name/records", h.deleteRecords)

	r.GET("/vacancies", h.listVacancies)
	r.GET("/vacancies/:id", h.getVacancy)
	r.POST("/vacancies", h.postVacancies)
	r.DELETE("/vacancies/:id", h.deleteVacancy)

	r.GET("/employers", h.listEmployers)
}

// ---------- helpers ----------

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, errBadQuery):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrSchemaMismatch), errors.Is(err, model.ErrInvalid), errors.Is(err, mapper.ErrNoEmployer):
		status = http.StatusUnprocessableEntity
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"detail": err.Error()})
}

var errBadQuery = errors.New("field and value must be given together")

// filter builds a store filter from the field/value query parameters,
// parsing value with the type the collection header declares for field.
func (h *Handler) filter(c *gin.Context, collection string) (*store.Filter, error) {
	field, hasField := c.GetQuery("field")
	value, hasValue := c.GetQuery("value")
	if !hasField && !hasValue {
		return nil, nil
	}
	if !hasField || !hasValue || field == "" {
		return nil, errBadQuery
	}
	hdr, err := h.store.Header(collection)
	if err != nil {
		return nil, err
	}
	ft, ok := hdr.Lookup(field)
	if !ok {
		return nil, &fieldError{field: field, collection: collection}
	}
	v, err := schema.ParseValue(ft, value)
	if err != nil {
		return nil, err
	}
	return &store.Filter{Field: field, Value: v}, nil
}

type fieldError struct {
	field, collection string
}

func (e *fieldError) Error() string {
	return "collection " + e.collection + " has no field " + e.field
}

func (e *fieldError) Unwrap() error { return store.ErrSchemaMismatch }

func flattenVacancies(vs []*model.Vacancy) []map[string]any {
	out := make([]map[string]any, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Flatten(model.Full))
	}
	return out
}

// ---------- status endpoints ----------

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "vacancy-store"})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ---------- collections ----------

func (h *Handler) listCollections(c *gin.Context) {
	names, err := h.store.ListCollections()
	if err != nil {
		h.fail(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}

func (h *Handler) getHeader(c *gin.Context) {
	name := c.Param("name")
	hdr, err := h.store.Header(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "fields": hdr})
}

func (h *Handler) selectRecords(c *gin.Context) {
	name := c.Param("name")
	f, err := h.filter(c, name)
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.store.Select(name, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) updateRecords(c *gin.Context) {
	name := c.Param("name")
	f, err := h.filter(c, name)
	if err != nil {
		h.fail(c, err)
		return
	}
	if f == nil {
		h.fail(c, errBadQuery)
		return
	}
	var req struct {
		Set   string `json:"set" binding:"required"`
		Value any    `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid JSON: " + err.Error()})
		return
	}
	if err := h.store.Update(name, req.Set, req.Value, f.Field, f.Value); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "collection": name})
}

func (h *Handler) deleteRecords(c *gin.Context) {
	name := c.Param("name")
	f, err := h.filter(c, name)
	if err != nil {
		h.fail(c, err)
		return
	}
	if f == nil {
		h.fail(c, errBadQuery)
		return
	}
	if err := h.store.Delete(name, f.Field, f.Value); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "collection": name})
}

// ---------- vacancies ----------

func (h *Handler) listVacancies(c *gin.Context) {
	f, err := h.filter(c, mapper.Vacancies)
	if err != nil {
		h.fail(c, err)
		return
	}
	vs, err := h.mapper.LoadVacancies(f)
	if err != nil {
		h.fail(c, err)
		return
	}
	switch c.Query("sort") {
	case "":
	case "salary":
		model.SortBySalary(vs)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unknown sort " + c.Query("sort")})
		return
	}
	c.JSON(http.StatusOK, flattenVacancies(vs))
}

func (h *Handler) getVacancy(c *gin.Context) {
	v, err := h.mapper.LoadVacancy(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v.Flatten(model.Full))
}

// postVacancies accepts one vacancy, an array of them or a search page.
func (h *Handler) postVacancies(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	vs, err := model.DecodeVacancies(body)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.mapper.PersistVacancies(vs); err != nil {
		h.fail(c, err)
		return
	}
	ids := make([]string, 0, len(vs))
	for _, v := range vs {
		ids = append(ids, v.ID)
	}
	c.JSON(http.StatusCreated, gin.H{"persisted": len(vs), "ids": ids})
}

func (h *Handler) deleteVacancy(c *gin.Context) {
	id := c.Param("id")
	if err := h.mapper.DeleteVacancy(id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

func (h *Handler) listEmployers(c *gin.Context) {
	f, err := h.filter(c, mapper.Employers)
	if err != nil {
		h.fail(c, err)
		return
	}
	es, err := h.mapper.LoadEmployers(f)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]map[string]any, 0, len(es))
	for _, e := range es {
		out = append(out, e.Flatten(model.Full))
	}
	c.JSON(http.StatusOK, out)
}
