package clientele

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	cerrors "github.com/phalt/clientele/errors"
)

func jsonResponse(status int, body string) *Response {
	return &Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(body),
	}
}

type userOrError interface{ isUserOrError() }

type okUser struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (okUser) isUserOrError()   {}
func (apiError) isUserOrError() {}

var noParams = reflect.TypeOf(struct{}{})

func TestHydratePlain(t *testing.T) {
	d := newDescriptor(http.MethodGet, "/users/{id}", mapParamsType, reflect.TypeOf(okUser{}), false, nil)
	got, err := hydrate(d, jsonResponse(200, `{"id":1,"name":"Ada"}`))
	require.NoError(t, err)
	require.Equal(t, okUser{ID: 1, Name: "Ada"}, got)
}

func TestHydratePlainMissingContentTypeMeansJSON(t *testing.T) {
	d := newDescriptor(http.MethodGet, "/users", noParams, reflect.TypeOf(okUser{}), false, nil)
	resp := &Response{StatusCode: 200, Header: http.Header{}, Body: []byte(`{"id":2,"name":"Grace"}`)}
	got, err := hydrate(d, resp)
	require.NoError(t, err)
	require.Equal(t, okUser{ID: 2, Name: "Grace"}, got)
}

func TestHydrateStatusMap(t *testing.T) {
	userOrErrType := reflect.TypeOf((*userOrError)(nil)).Elem()
	d := newDescriptor(http.MethodGet, "/users", noParams, userOrErrType, false,
		[]DeclareOption{StatusMap{200: okUser{}, 404: apiError{}}})

	got, err := hydrate(d, jsonResponse(200, `{"id":1,"name":"Ada"}`))
	require.NoError(t, err)
	require.Equal(t, okUser{ID: 1, Name: "Ada"}, got)

	got, err = hydrate(d, jsonResponse(404, `{"error":"nf","code":404}`))
	require.NoError(t, err)
	require.Equal(t, apiError{Error: "nf", Code: 404}, got)
}

func TestHydrateStatusMapProtocolError(t *testing.T) {
	userOrErrType := reflect.TypeOf((*userOrError)(nil)).Elem()
	d := newDescriptor(http.MethodGet, "/users", noParams, userOrErrType, false,
		[]DeclareOption{StatusMap{200: okUser{}, 404: apiError{}}})

	_, err := hydrate(d, jsonResponse(500, `{"error":"boom"}`))
	var protoErr *cerrors.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, 500, protoErr.Status)
	require.Equal(t, []int{200, 404}, protoErr.Expected)
}

func TestHydrateStatusMapAbsentBody(t *testing.T) {
	userOrErrType := reflect.TypeOf((*userOrError)(nil)).Elem()
	d := newDescriptor(http.MethodGet, "/users", noParams, userOrErrType, false,
		[]DeclareOption{StatusMap{204: okUser{}}})

	got, err := hydrate(d, &Response{StatusCode: 204, Header: http.Header{}})
	require.NoError(t, err)
	require.Equal(t, okUser{}, got)
}

func TestHydrateNonObjectIntoStruct(t *testing.T) {
	d := newDescriptor(http.MethodGet, "/users", noParams, reflect.TypeOf(okUser{}), false, nil)
	_, err := hydrate(d, jsonResponse(200, `[1,2,3]`))
	var typeErr *cerrors.TypeError
	require.ErrorAs(t, err, &typeErr)
	require.Contains(t, typeErr.Type, "okUser")
}

func TestHydrateTextResponses(t *testing.T) {
	textResp := func(body string) *Response {
		return &Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
			Body:       []byte(body),
		}
	}

	d := newDescriptor(http.MethodGet, "/motd", noParams, reflect.TypeOf(""), false, nil)
	got, err := hydrate(d, textResp("hello"))
	require.NoError(t, err)
	require.Equal(t, "hello", got)

	d = newDescriptor(http.MethodGet, "/users", noParams, reflect.TypeOf(okUser{}), false, nil)
	_, err = hydrate(d, textResp("hello"))
	var typeErr *cerrors.TypeError
	require.ErrorAs(t, err, &typeErr)

	d = newDescriptor(http.MethodGet, "/count", noParams, reflect.TypeOf(0), false, nil)
	got, err = hydrate(d, textResp("42"))
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestHydrateYAML(t *testing.T) {
	d := newDescriptor(http.MethodGet, "/users", noParams, reflect.TypeOf(okUser{}), false, nil)
	resp := &Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"application/yaml"}},
		Body:       []byte("id: 3\nname: Lin\n"),
	}
	got, err := hydrate(d, resp)
	require.NoError(t, err)
	require.Equal(t, okUser{ID: 3, Name: "Lin"}, got)
}

func TestHydrateCustomParserResultUnmodified(t *testing.T) {
	d := newDescriptor(http.MethodGet, "/raw", noParams,
		reflect.TypeOf((*interface{})(nil)).Elem(), false,
		[]DeclareOption{Parser(func(r *Response) (interface{}, error) {
			return r.StatusCode, nil
		})})
	got, err := hydrate(d, jsonResponse(418, `{"ignored":true}`))
	require.NoError(t, err)
	require.Equal(t, 418, got)
}

func TestHydrateValidationErrorSurfacesUnmodified(t *testing.T) {
	type strictUser struct {
		Name string `json:"name" validate:"required"`
	}
	d := newDescriptor(http.MethodGet, "/users", noParams, reflect.TypeOf(strictUser{}), false, nil)
	_, err := hydrate(d, jsonResponse(200, `{}`))
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
}

func TestResponseTextLazy(t *testing.T) {
	resp := &Response{Body: []byte("abc")}
	require.Equal(t, "abc", resp.Text())
	require.Equal(t, "abc", resp.Text())
}
