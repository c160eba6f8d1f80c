package policy

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/decisionengine/internal/testutil"
)

func newHandlers(t *testing.T) (*Handlers, *Store) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	store := NewStore(tdb.DB, tdb.Logger)
	return NewHandlers(store), store
}

func request(method, target, contentType, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func assertHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("error = %v, want *echo.HTTPError", err)
	}
	if he.Code != code {
		t.Errorf("status = %d, want %d", he.Code, code)
	}
}

func TestHandlers_GetWithoutPolicy(t *testing.T) {
	h, _ := newHandlers(t)
	c, _ := request(http.MethodGet, "/", "", "")
	assertHTTPError(t, h.Get(c), http.StatusNotFound)
}

func TestHandlers_ImportYAMLThenGet(t *testing.T) {
	h, _ := newHandlers(t)
	data, err := os.ReadFile("testdata/policy.yaml")
	require.NoError(t, err)

	c, rec := request(http.MethodPut, "/?source=upload", "application/yaml", string(data))
	require.NoError(t, h.Import(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var rev Revision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rev))
	assert.Equal(t, "upload", rev.Source)

	c, rec = request(http.MethodGet, "/", "", "")
	require.NoError(t, h.Get(c))
	var resp PolicyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, rev.ID, resp.Revision.ID)
	require.Len(t, resp.Policy.Items, 2)
	assert.Equal(t, "Dune Part Two", resp.Policy.Items[0].Title)
}

func TestHandlers_ImportErrors(t *testing.T) {
	h, _ := newHandlers(t)

	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		code        int
	}{
		{"malformed json", "/", echo.MIMEApplicationJSON, `{"profiles":`, http.StatusBadRequest},
		{"unsupported format", "/?format=ini", "", `x=1`, http.StatusUnsupportedMediaType},
		{"invalid policy", "/", echo.MIMEApplicationJSON,
			`{"profiles":[],"items":[{"id":1,"mediaType":"movie","title":"X","profileId":1}]}`,
			http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := request(http.MethodPut, tt.target, tt.contentType, tt.body)
			assertHTTPError(t, h.Import(c), tt.code)
		})
	}
}

func TestHandlers_Validate(t *testing.T) {
	h, _ := newHandlers(t)
	data, err := os.ReadFile("testdata/policy.yaml")
	require.NoError(t, err)

	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		valid       bool
	}{
		{"valid yaml", "/?format=yaml", "", string(data), true},
		{"broken toml", "/", "application/toml", "settings = [", false},
		{"unknown profile", "/", echo.MIMEApplicationJSON,
			`{"items":[{"id":1,"mediaType":"movie","title":"X","profileId":3}]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := request(http.MethodPost, tt.target, tt.contentType, tt.body)
			require.NoError(t, h.Validate(c))
			var res ValidationResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.valid, res.Valid, "error: %s", res.Error)
			if !tt.valid {
				assert.NotEmpty(t, res.Error)
			}
		})
	}
}

func TestHandlers_Revisions(t *testing.T) {
	h, store := newHandlers(t)

	c, rec := request(http.MethodGet, "/", "", "")
	require.NoError(t, h.Revisions(c))
	assert.JSONEq(t, `[]`, rec.Body.String())

	_, err := store.Import(c.Request().Context(), loadFixture(t), "a")
	require.NoError(t, err)
	_, err = store.Import(c.Request().Context(), loadFixture(t), "b")
	require.NoError(t, err)

	c, rec = request(http.MethodGet, "/?limit=1", "", "")
	require.NoError(t, h.Revisions(c))
	var revs []Revision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &revs))
	require.Len(t, revs, 1)
	assert.Equal(t, "b", revs[0].Source)

	c, _ = request(http.MethodGet, "/?limit=x", "", "")
	assertHTTPError(t, h.Revisions(c), http.StatusBadRequest)
}
