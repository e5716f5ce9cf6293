package mdxblog

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type adminStatus struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrfToken"`
}

func (a *App) handleAdmin(c echo.Context) error {
	return c.JSON(http.StatusOK, adminStatus{Authenticated: IsAdmin(c), CSRFToken: CsrfToken(c)})
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		c.Logger().Warnf("failed admin login from %s", ip)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// handleAdminPosts lists every article, drafts and future posts included.
// Without a type parameter all content types are listed.
func (a *App) handleAdminPosts(c echo.Context) error {
	q, err := a.queryFromRequest(c)
	if err != nil {
		return err
	}
	q.Type = strings.TrimSpace(c.QueryParam("type"))
	q.IncludeDrafts = true
	res, err := a.Posts.Query(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type rebuildResult struct {
	All       int `json:"all"`
	Published int `json:"published"`
}

func (a *App) handleAdminRebuild(c echo.Context) error {
	snap, err := a.Rebuild(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrRebuildInProgress) {
			return echo.NewHTTPError(http.StatusConflict, "rebuild already in progress")
		}
		return err
	}
	return c.JSON(http.StatusOK, rebuildResult{All: len(snap.All), Published: len(snap.Published)})
}

func (a *App) handleAdminContacts(c echo.Context) error {
	contacts, err := a.Store.ListContacts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, contacts)
}

func (a *App) handleAdminDeleteContact(c echo.Context) error {
	if err := a.Store.DeleteContact(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "contact not found")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
