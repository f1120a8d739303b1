package agent

import (
	"errors"
	"net/http"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gin-gonic/gin"

	"github.com/calehh/hac-election/state"
)

// DocumentServer exposes a Transport over HTTP in the shape HTTPTransport
// speaks, so several nodes can share one store.
type DocumentServer struct {
	transport state.Transport
	logger    cmtlog.Logger
}

func NewDocumentServer(transport state.Transport, logger cmtlog.Logger) *DocumentServer {
	return &DocumentServer{
		transport: transport,
		logger:    logger.With("module", "docserver"),
	}
}

func (s *DocumentServer) Register(r gin.IRouter) {
	g := r.Group("/v1/documents")
	g.GET("/:id", s.handleGet)
	g.POST("", s.handleCreate)
	g.PUT("/:id", s.handleUpdate)
	g.DELETE("/:id", s.handleDelete)
}

func (s *DocumentServer) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, state.ErrNotFound):
		c.JSON(http.StatusNotFound, state.ErrorResponse{Error: err.Error()})
	case errors.Is(err, state.ErrVersionConflict), errors.Is(err, state.ErrExists):
		c.JSON(http.StatusConflict, state.ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("document request fail", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, state.ErrorResponse{Error: err.Error()})
	}
}

func (s *DocumentServer) handleGet(c *gin.Context) {
	id := c.Param("id")
	body, version, err := s.transport.GetDocument(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state.DocumentResponse{Id: id, Version: version, Body: body})
}

func (s *DocumentServer) handleCreate(c *gin.Context) {
	var req state.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, state.ErrorResponse{Error: err.Error()})
		return
	}
	ctx := c.Request.Context()
	if req.Id != "" {
		if err := s.transport.CreateNamedDocument(ctx, req.Id, req.Body); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, state.DocumentResponse{Id: req.Id, Version: 1})
		return
	}
	id, err := s.transport.CreateDocument(ctx, req.Body)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, state.DocumentResponse{Id: id, Version: 1})
}

func (s *DocumentServer) handleUpdate(c *gin.Context) {
	var req state.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, state.ErrorResponse{Error: err.Error()})
		return
	}
	id := c.Param("id")
	version, err := s.transport.UpdateDocument(c.Request.Context(), id, req.Body, req.ExpectedVersion)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state.DocumentResponse{Id: id, Version: version})
}

func (s *DocumentServer) handleDelete(c *gin.Context) {
	if err := s.transport.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
