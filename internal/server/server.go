// Package server wires the generated route table into a gin engine.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marshallshelly/memra/pkg/auth"
	"github.com/marshallshelly/memra/pkg/routes"
)

// Options configures New.
type Options struct {
	// Prefix is the group every route is mounted under, e.g. "/api".
	Prefix string
	Routes *routes.Table
	Auth   auth.Authenticator
	Logger *slog.Logger
}

// PrivateResponse is the body of GET <prefix>/private.
type PrivateResponse struct {
	Message string `json:"message"`
	User    string `json:"user"`
}

// New builds the engine: request ids, request logging, recovery and
// authentication, then the route table and the whoami endpoint.
func New(opts Options) (*gin.Engine, error) {
	if opts.Routes == nil {
		return nil, errors.New("server: no route table")
	}
	if opts.Auth == nil {
		return nil, errors.New("server: no authenticator")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(RequestID(), Logger(logger), gin.Recovery())

	api := engine.Group(opts.Prefix)
	api.Use(auth.Middleware(opts.Auth, logger))
	api.GET("/private", private)

	if err := opts.Routes.Mount(api); err != nil {
		return nil, err
	}
	return engine, nil
}

func private(c *gin.Context) {
	p := auth.FromContext(c)
	id, ok := p.ID()
	if !ok {
		c.JSON(http.StatusOK, PrivateResponse{Message: "Unauthenticated.", User: "None"})
		return
	}
	c.JSON(http.StatusOK, PrivateResponse{Message: "Authenticated User.", User: strconv.FormatInt(id, 10)})
}
