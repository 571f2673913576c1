package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
	qrcode "github.com/skip2/go-qrcode"
)

// sessionQRHandler handles GET /admin/sessions/:id/qr, a join-by-QR
// convenience endpoint: renders a join URL as a PNG for display in front
// of a physical screen during an in-person game night.
func (s *Server) sessionQRHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return mapServiceError(err)
	}

	joinURL := s.publicBaseURL + "/game/sessions/" + sessionID + "/join"
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render qr code")
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
