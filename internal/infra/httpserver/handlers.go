package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/FuturICT2/FIN4NotificationServer/internal/config"
	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
	"github.com/FuturICT2/FIN4NotificationServer/internal/services"
)

// HealthHandler returns service health.
func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// LoginHandler issues JWT tokens for the admin surface. Demo-grade: it
// accepts any user id, like the upstream deployments behind a proxy do.
func LoginHandler(cfg config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.QueryParam("userId")
		if userID == "" {
			userID = "admin"
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": userID,
			"exp": time.Now().Add(24 * time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"token": signed})
	}
}

// signupRequest is the web-form payload for the email channel.
type signupRequest struct {
	Email   string                    `json:"email" form:"email"`
	Address string                    `json:"address" form:"address"`
	Events  map[domain.EventKind]bool `json:"events" form:"events"`
}

// SignupHandler creates an email subscription and answers with the
// user-visible result text.
func SignupHandler(mailer *services.MailSignupService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req signupRequest
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "Could not read the form.")
		}
		text, err := mailer.Signup(req.Email, req.Address, req.Events)
		switch {
		case err == nil:
			return c.String(http.StatusOK, text)
		case errors.Is(err, domain.ErrDuplicateSubscription):
			return c.String(http.StatusConflict, text)
		case errors.Is(err, domain.ErrInvalidAddress):
			return c.String(http.StatusBadRequest, text)
		default:
			return c.String(http.StatusInternalServerError, text)
		}
	}
}

// UnsubscribeHandler removes the subscription behind a token from a mail's
// unsubscribe link.
func UnsubscribeHandler(mailer *services.MailSignupService) echo.HandlerFunc {
	return func(c echo.Context) error {
		text, err := mailer.Unsubscribe(c.QueryParam("token"))
		if err != nil {
			return c.String(http.StatusNotFound, text)
		}
		return c.String(http.StatusOK, text)
	}
}

// SubscribersHandler lists the messaging-channel records for operators.
func SubscribersHandler(subs *services.SubscriptionStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		out := map[string]any{
			"chat":  subs.All(domain.ChannelChat),
			"email": subs.All(domain.ChannelEmail),
		}
		return c.JSON(http.StatusOK, out)
	}
}
