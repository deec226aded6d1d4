package api

import (
	"github.com/labstack/echo/v4"

	xhttp "FinGAN/pkg/http"
)

// Router registers several handlers on one server.
type Router []xhttp.Handler

func (r Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
