package ginrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/oasrouter/internal/dispatch"
	"github.com/mark3labs/oasrouter/internal/security"
	"github.com/mark3labs/oasrouter/internal/spec"
)

const petsYAML = `openapi: 3.0.3
info: {title: Pets, version: "1"}
paths:
  /pets/{petId}:
    get:
      operationId: getPet
      security:
        - Bearer: []
        - Key: []
      parameters:
        - in: path
          name: petId
          required: true
          schema: {type: integer}
        - in: query
          name: tag
          schema: {type: array, items: {type: string}}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: object
                required: [id]
                properties:
                  id: {type: integer}
                  tags: {type: array, items: {type: string}}
                  by: {type: object}
    put:
      operationId: putPet
      security: []
      parameters:
        - in: path
          name: petId
          required: true
          schema: {type: integer}
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name: {type: string}
      responses:
        "200":
          description: ok
components:
  securitySchemes:
    Bearer: {type: http, scheme: bearer}
    Key: {type: apiKey, in: cookie, name: session}
`

var errBroken = errors.New("broken")

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	doc, err := spec.Parse(context.Background(), []byte(petsYAML))
	require.NoError(t, err)
	api, err := spec.BuildAPI(context.Background(), doc)
	require.NoError(t, err)

	handlers := dispatch.Handlers{
		"getPet": dispatch.HandlerFunc(func(_ context.Context, req *dispatch.Request) (dispatch.Result, error) {
			return dispatch.Result{StatusCode: http.StatusOK, Content: map[string]any{
				"id":   req.Params["petId"],
				"tags": req.Query["tag"],
				"by":   req.Security,
			}}, nil
		}),
		"putPet": dispatch.HandlerFunc(func(_ context.Context, req *dispatch.Request) (dispatch.Result, error) {
			return dispatch.Result{}, errBroken
		}),
	}
	schemes := security.Handlers{
		"Bearer": func(_ context.Context, c security.Credential) (any, error) {
			if c.Credentials == "Jane" {
				return "jane", nil
			}
			return nil, nil
		},
		"Key": func(_ context.Context, c security.Credential) (any, error) {
			switch c.APIKey {
			case "s3cret":
				return "session", nil
			case "a%2Bb":
				return "raw", nil
			}
			return nil, nil
		},
	}
	d, err := dispatch.New(api, handlers, schemes)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(ErrorHandler(nil))
	d.Mount(New(engine))
	return engine
}

func TestGinRouter(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)

	tests := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		body    string
		status  int
		want    string
	}{
		{
			name:    "bearer with repeated query",
			target:  "/pets/4?tag=a&tag=b",
			headers: map[string]string{"Accept": "application/json", "Authorization": "Bearer Jane"},
			status:  http.StatusOK,
			want:    `{"id":4,"tags":["a","b"],"by":{"Bearer":"jane"}}`,
		},
		{
			name:    "cookie with single query value",
			target:  "/pets/4?tag=a",
			headers: map[string]string{"Accept": "application/json", "Cookie": "session=s3cret"},
			status:  http.StatusOK,
			want:    `{"id":4,"tags":["a"],"by":{"Key":"session"}}`,
		},
		{
			name:    "cookie value is passed through unescaped",
			target:  "/pets/4?tag=a",
			headers: map[string]string{"Accept": "application/json", "Cookie": "session=a%2Bb"},
			status:  http.StatusOK,
			want:    `{"id":4,"tags":["a"],"by":{"Key":"raw"}}`,
		},
		{
			name:    "rejected",
			target:  "/pets/4",
			headers: map[string]string{"Accept": "application/json", "Authorization": "Bearer John"},
			status:  http.StatusUnauthorized,
			want:    `"Authorization Error"`,
		},
		{
			name:    "invalid path parameter",
			target:  "/pets/four",
			headers: map[string]string{"Accept": "application/json", "Authorization": "Bearer Jane"},
			status:  http.StatusBadRequest,
		},
		{
			name:   "missing required body member",
			method: http.MethodPut,
			target: "/pets/4",
			body:   `{}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "handler error goes to gin",
			method: http.MethodPut,
			target: "/pets/4",
			body:   `{"name":"Rex"}`,
			status: http.StatusInternalServerError,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			method := tc.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, tc.target, strings.NewReader(tc.body))
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.want != "" {
				assert.JSONEq(t, tc.want, rec.Body.String())
			}
		})
	}
}

func TestGinRouter_Style(t *testing.T) {
	t.Parallel()
	assert.Equal(t, dispatch.StyleColon, New(gin.New()).Style())
}
