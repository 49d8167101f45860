package clientele

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"google.golang.org/protobuf/proto"

	cerrors "github.com/phalt/clientele/errors"
)

var queryEncoder = func() *schema.Encoder {
	e := schema.NewEncoder()
	e.SetAliasTag("query")
	return e
}()

// validate is the schema-validation layer. Struct payloads with
// `validate` tags are checked with it before they are sent and after
// they are decoded; its ValidationErrors surface unmodified.
var validate = validator.New()

// mapBodyKey is the body-designated entry of a signature-less
// (map-typed) parameter set.
const mapBodyKey = "data"

// bind resolves one call's arguments against the descriptor into a
// PreparedRequest. It never starts any I/O: every failure here happens
// before the network is touched.
func bind(d *descriptor, c *Client, params interface{}, cc *callConfig) (*PreparedRequest, error) {
	pr := &PreparedRequest{
		Method: d.method,
		Header: http.Header{},
	}
	for key, values := range c.headers {
		pr.Header[key] = append([]string(nil), values...)
	}
	if c.authorization != "" {
		pr.Header.Set("Authorization", c.authorization)
	}

	var resolvedPath string
	var query url.Values
	var err error
	if d.mapParams {
		resolvedPath, query, err = bindMap(d, pr, params.(map[string]interface{}))
	} else {
		resolvedPath, query, err = bindStruct(d, pr, params)
	}
	if err != nil {
		return nil, err
	}

	if cc.query != nil {
		// Wholesale override. Unlike the computed query, the override
		// is installed verbatim: empty values are kept.
		query = cc.query
	}
	pr.Query = query

	for key, values := range cc.header {
		pr.Header[key] = append([]string(nil), values...)
	}

	pr.URL = c.baseURL + resolvedPath
	return pr, nil
}

func bindStruct(d *descriptor, pr *PreparedRequest, params interface{}) (string, url.Values, error) {
	// Work on an addressable copy so that defaults never mutate the
	// caller's value.
	v := reflect.New(d.paramType).Elem()
	v.Set(reflect.ValueOf(params))

	if err := applyDefaults(d, v); err != nil {
		return "", nil, err
	}
	if err := validateParams(v); err != nil {
		return "", nil, err
	}

	pathValues, err := resolvePathValues(d, v)
	if err != nil {
		return "", nil, err
	}
	resolvedPath, err := buildPath(d.path, pathValues)
	if err != nil {
		return "", nil, err
	}

	query, err := computeQuery(d, v)
	if err != nil {
		return "", nil, err
	}

	if err := applyHeaderParams(d, v, pr.Header); err != nil {
		return "", nil, err
	}

	if err := encodeStructBody(d, v, pr); err != nil {
		return "", nil, err
	}

	return resolvedPath, query, nil
}

func bindMap(d *descriptor, pr *PreparedRequest, params map[string]interface{}) (string, url.Values, error) {
	rest := make(map[string]interface{}, len(params))
	for key, value := range params {
		rest[key] = value
	}

	pathValues := make(map[string]string, len(d.keys))
	for _, key := range d.keys {
		value, has := rest[key]
		if !has || value == nil {
			return "", nil, &cerrors.BindingError{Placeholder: key, Path: d.path}
		}
		s, err := toString(value)
		if err != nil {
			return "", nil, fmt.Errorf("failed to render path value %s: %w", key, err)
		}
		pathValues[key] = s
		delete(rest, key)
	}
	resolvedPath, err := buildPath(d.path, pathValues)
	if err != nil {
		return "", nil, err
	}

	if bodyMethods[d.method] {
		if value, has := rest[mapBodyKey]; has {
			delete(rest, mapBodyKey)
			if err := encodeBodyValue(pr, value, mapParamsType.Elem()); err != nil {
				return "", nil, err
			}
		}
	}

	query := url.Values{}
	for key, value := range rest {
		if value == nil {
			// Absent optionals never reach the query string.
			continue
		}
		s, err := toString(value)
		if err != nil {
			return "", nil, fmt.Errorf("failed to render query value %s: %w", key, err)
		}
		query.Set(key, s)
	}
	return resolvedPath, query, nil
}

func applyDefaults(d *descriptor, v reflect.Value) error {
	for _, p := range d.params {
		if !p.hasDefault || !v.Field(p.field).IsZero() {
			continue
		}
		field := v.Field(p.field)
		if field.Kind() == reflect.Ptr {
			elem := reflect.New(field.Type().Elem())
			if err := fromString(elem.Interface(), p.defaultVal); err != nil {
				return fmt.Errorf("failed to apply default for %s: %w", p.fieldName, err)
			}
			field.Set(elem)
			continue
		}
		if err := fromString(field.Addr().Interface(), p.defaultVal); err != nil {
			return fmt.Errorf("failed to apply default for %s: %w", p.fieldName, err)
		}
	}
	return nil
}

func validateParams(v reflect.Value) error {
	err := validate.Struct(v.Interface())
	if err == nil {
		return nil
	}
	if _, ok := err.(*validator.InvalidValidationError); ok {
		// Not a validatable shape. The descriptor builder already
		// guaranteed a struct, so this cannot happen for real calls.
		return nil
	}
	return err
}

func resolvePathValues(d *descriptor, v reflect.Value) (map[string]string, error) {
	values := make(map[string]string, len(d.keys))
	for _, p := range d.params {
		if p.kind != paramPath {
			continue
		}
		field := v.Field(p.field)
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				return nil, &cerrors.BindingError{Placeholder: p.name, Path: d.path}
			}
			field = field.Elem()
		}
		s, err := toString(field.Interface())
		if err != nil {
			return nil, fmt.Errorf("failed to render path value %s: %w", p.name, err)
		}
		values[p.name] = s
	}
	return values, nil
}

func computeQuery(d *descriptor, v reflect.Value) (url.Values, error) {
	query := url.Values{}
	if d.queryStruct != nil {
		qs := reflect.New(d.queryStruct).Elem()
		for i, fieldIndex := range d.queryFields {
			qs.Field(i).Set(v.Field(fieldIndex))
		}
		if err := queryEncoder.Encode(qs.Interface(), query); err != nil {
			return nil, fmt.Errorf("failed to encode query: %w", err)
		}
	}
	for _, p := range d.params {
		if p.kind != paramQuery || !p.optional {
			continue
		}
		field := v.Field(p.field)
		if field.IsNil() {
			// An optional parameter left absent is omitted entirely.
			continue
		}
		s, err := toString(field.Elem().Interface())
		if err != nil {
			return nil, fmt.Errorf("failed to render query value %s: %w", p.name, err)
		}
		query.Set(p.name, s)
	}
	return query, nil
}

func applyHeaderParams(d *descriptor, v reflect.Value, header http.Header) error {
	for _, p := range d.params {
		if p.kind != paramHeader {
			continue
		}
		field := v.Field(p.field)
		if p.optional {
			if field.IsNil() {
				continue
			}
			field = field.Elem()
		}
		s, err := toString(field.Interface())
		if err != nil {
			return fmt.Errorf("failed to render header value %s: %w", p.name, err)
		}
		header.Set(p.name, s)
	}
	return nil
}

func encodeStructBody(d *descriptor, v reflect.Value, pr *PreparedRequest) error {
	if !bodyMethods[d.method] {
		return nil
	}
	forJSON := make(map[string]interface{})
	hasJSON := false
	for _, p := range d.params {
		switch p.kind {
		case paramBody:
			return encodeBodyValue(pr, v.Field(p.field).Interface(), p.typ)
		case paramJSON:
			hasJSON = true
			field := v.Field(p.field)
			if p.omitEmpty && field.IsZero() {
				continue
			}
			forJSON[p.name] = field.Interface()
		}
	}
	if !hasJSON {
		return nil
	}
	body, err := json.Marshal(forJSON)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	pr.Body = body
	pr.ContentType = "application/json"
	return nil
}

// encodeBodyValue serializes a whole-payload body value. Schema structs
// are validated first; protobuf messages go over the wire in binary
// form; readers, byte slices and strings pass through unencoded. A value
// that is neither of those nor a key/value structure is a TypeError.
func encodeBodyValue(pr *PreparedRequest, value interface{}, declared reflect.Type) error {
	switch v := value.(type) {
	case nil:
		return nil
	case proto.Message:
		body, err := proto.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode protobuf body: %w", err)
		}
		pr.Body = body
		pr.ContentType = "application/x-protobuf"
		return nil
	case io.Reader:
		pr.BodyStream = v
		pr.ContentType = "application/octet-stream"
		return nil
	case []byte:
		pr.Body = v
		pr.ContentType = "application/octet-stream"
		return nil
	case string:
		pr.Body = []byte(v)
		pr.ContentType = "text/plain; charset=utf-8"
		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		if err := validate.Struct(rv.Interface()); err != nil {
			if _, ok := err.(*validator.InvalidValidationError); !ok {
				return err
			}
		}
	case reflect.Map:
		// A plain key/value structure passes through.
	default:
		return &cerrors.TypeError{
			Type:   declared.String(),
			Reason: fmt.Sprintf("body value of kind %s is not a key/value structure", rv.Kind()),
		}
	}
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	pr.Body = body
	pr.ContentType = "application/json"
	return nil
}
