// Package httpserver assembles the HTTP surface: the Twilio webhooks, the
// media-stream WebSocket route, and the middleware in front of both.
package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	apihttp "github.com/ErikRobinson94/caseconnect/api/http"
	"github.com/ErikRobinson94/caseconnect/internal/callcontrol"
	"github.com/ErikRobinson94/caseconnect/internal/config"
	"github.com/ErikRobinson94/caseconnect/internal/middleware"
	"github.com/ErikRobinson94/caseconnect/internal/recording"
	"github.com/ErikRobinson94/caseconnect/internal/relay"
)

// Deps are the call-scoped collaborators the routes need.
type Deps struct {
	Calls      *callcontrol.Service
	Archiver   *recording.Archiver
	OnFinalize relay.FinalizeFunc
}

// Server bundles the router and its dependencies.
type Server struct {
	e *echo.Echo
}

// New constructs the router with all routes registered.
func New(cfg config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.TwilioAuth(cfg.TwilioAuthToken))

	h := apihttp.Handlers{
		Cfg:      cfg,
		Recorder: deps.Calls,
		Archiver: deps.Archiver,
		Stream:   streamHandler(cfg, deps.Calls, deps.OnFinalize),
	}
	h.Register(e)

	return &Server{e: e}
}

// Router exposes the handler for the HTTP server.
func (s *Server) Router() http.Handler { return s.e }
