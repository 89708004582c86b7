package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
	appErrors "github.com/noah-isme/foster-pipeline-api/pkg/errors"
)

type stubValidator struct {
	claims *models.StaffClaims
	err    error
	token  string
}

func (s *stubValidator) ValidateToken(token string) (*models.StaffClaims, error) {
	s.token = token
	return s.claims, s.err
}

func jwtRouter(v tokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", JWT(v), func(c *gin.Context) {
		claims := Claims(c)
		c.String(http.StatusOK, claims.Email)
	})
	return r
}

func TestJWTAcceptsBearerToken(t *testing.T) {
	v := &stubValidator{claims: &models.StaffClaims{Email: "jay@rescue.org", Role: models.StaffRole}}
	r := jwtRouter(v)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "bearer abc.def")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jay@rescue.org", w.Body.String())
	assert.Equal(t, "abc.def", v.token)
}

func TestJWTRejectsMissingOrInvalidTokens(t *testing.T) {
	r := jwtRouter(&stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")})

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer abc"} {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED", header)
	}
}

func TestJWTMapsUnexpectedErrors(t *testing.T) {
	r := jwtRouter(&stubValidator{err: errors.New("boom")})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type observed struct {
	method, path string
	status       int
}

type stubObserver struct{ calls []observed }

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.calls = append(s.calls, observed{method: method, path: path, status: status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &stubObserver{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/applicants/:email", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/applicants/ann@example.com", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []observed{
		{method: http.MethodGet, path: "/applicants/:email", status: http.StatusNoContent},
		{method: http.MethodGet, path: "unmatched", status: http.StatusNotFound},
	}, obs.calls)
}
