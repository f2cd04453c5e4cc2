package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	token, exp, err := IssueAccessToken(42, "user", testSecret, 15*time.Minute)
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	id, err := parseUserID(token, testSecret)
	require.NoError(t, err)
	require.Equal(t, uint(42), id)
}

func TestTokenWrongSecret(t *testing.T) {
	token, _, err := IssueAccessToken(42, "user", testSecret, 15*time.Minute)
	require.NoError(t, err)

	_, err = parseUserID(token, []byte("other-secret"))
	require.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	token, _, err := IssueAccessToken(42, "user", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = parseUserID(token, testSecret)
	require.Error(t, err)
}

func TestEnsureSessionSetsCookie(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := EnsureSession()(func(c echo.Context) error {
		ck, err := c.Cookie(SessionCookie)
		require.NoError(t, err)
		require.NotEmpty(t, ck.Value)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	var found bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			found = true
			require.True(t, ck.HttpOnly)
		}
	}
	require.True(t, found)
}

func TestEnsureSessionKeepsExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "existing"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := EnsureSession()(func(c echo.Context) error {
		ck, err := c.Cookie(SessionCookie)
		require.NoError(t, err)
		require.Equal(t, "existing", ck.Value)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	require.Empty(t, rec.Result().Cookies())
}

func TestResolveOwnerGuest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sess-1"})
	c := e.NewContext(req, httptest.NewRecorder())

	owner, err := ResolveOwner(c, testSecret)
	require.NoError(t, err)
	require.True(t, owner.IsGuest())
	require.Equal(t, "sess-1", owner.SessionID)
}

func TestResolveOwnerAuthenticated(t *testing.T) {
	token, _, err := IssueAccessToken(7, "user", testSecret, 15*time.Minute)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sess-1"})
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: token})
	c := e.NewContext(req, httptest.NewRecorder())

	owner, err := ResolveOwner(c, testSecret)
	require.NoError(t, err)
	require.False(t, owner.IsGuest())
	require.Equal(t, uint(7), *owner.UserID)
	require.Equal(t, "sess-1", owner.SessionID)
}

func TestResolveOwnerNoSession(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	_, err := ResolveOwner(c, testSecret)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestAdminOnly(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	mw := AdminOnly(testSecret)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := mw(e.NewContext(req, httptest.NewRecorder()))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.Code)

	userToken, _, err := IssueAccessToken(7, "user", testSecret, 15*time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: userToken})
	err = mw(e.NewContext(req, httptest.NewRecorder()))
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusForbidden, httpErr.Code)

	adminToken, _, err := IssueAccessToken(1, "admin", testSecret, 15*time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: adminToken})
	rec := httptest.NewRecorder()
	require.NoError(t, mw(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)
}
