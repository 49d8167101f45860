package clientele

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	cerrors "github.com/phalt/clientele/errors"
)

type paramKind int

const (
	paramPath paramKind = iota
	paramQuery
	paramHeader
	paramBody // whole-payload body field, tag body:"true"
	paramJSON // body field encoded into the request JSON object
)

func (k paramKind) String() string {
	switch k {
	case paramPath:
		return "path"
	case paramQuery:
		return "query"
	case paramHeader:
		return "header"
	case paramBody, paramJSON:
		return "body"
	}
	return "unknown"
}

// param is one entry of a descriptor's ordered parameter list.
type param struct {
	field      int
	fieldName  string
	name       string // wire name
	kind       paramKind
	typ        reflect.Type
	optional   bool // pointer query/header field; nil is omitted
	omitEmpty  bool // json ",omitempty"
	defaultVal string
	hasDefault bool
}

type strategyKind int

const (
	strategyPlain strategyKind = iota
	strategyStatusMap
	strategyParser
	strategyStream
)

// responseStrategy is a sum type: exactly one variant is active per
// descriptor, which makes the conflicting-declaration checks local to the
// builder instead of being spread over the hydrator.
type responseStrategy struct {
	kind       strategyKind
	statusMap  map[int]reflect.Type
	statuses   []int // sorted keys of statusMap
	parser     func(*Response) (interface{}, error)
	itemParser func(string) (interface{}, error)
	item       reflect.Type // streaming inner type
}

// descriptor is the immutable metadata of one declared operation. It is
// built once, at declaration time, and shared by all calls.
type descriptor struct {
	op     string // "GET /users/{user_id}", for error messages
	method string
	path   string
	keys   []string // path placeholders in template order

	paramType reflect.Type
	mapParams bool // paramType is map[string]interface{}
	params    []param

	// Synthetic struct holding the required query fields, used with the
	// gorilla/schema encoder. Optional (pointer) query fields are
	// serialized by the binder itself so that nil values are omitted.
	queryStruct reflect.Type
	queryFields []int // original field index per queryStruct field

	result   reflect.Type
	strategy responseStrategy
}

// declareConfig collects DeclareOptions before strategy resolution.
type declareConfig struct {
	statusMap  StatusMap
	parser     func(*Response) (interface{}, error)
	itemParser func(string) (interface{}, error)
}

// DeclareOption configures an operation at declaration time.
type DeclareOption interface {
	applyDeclare(*declareConfig)
}

type declareOptionFunc func(*declareConfig)

func (f declareOptionFunc) applyDeclare(c *declareConfig) { f(c) }

// StatusMap declares status-code-keyed response dispatch: each declared
// status hydrates into its own type. The sample values only carry types,
// e.g. StatusMap{200: User{}, 404: NotFound{}}. Every type must be
// assignable to the operation's result type.
type StatusMap map[int]interface{}

func (m StatusMap) applyDeclare(c *declareConfig) { c.statusMap = m }

// Parser declares a custom response parser. Its return value is handed to
// the handler unmodified, bypassing the built-in hydration.
func Parser(fn func(*Response) (interface{}, error)) DeclareOption {
	return declareOptionFunc(func(c *declareConfig) { c.parser = fn })
}

// ItemParser declares a custom per-record parser for a streaming
// operation.
func ItemParser(fn func(string) (interface{}, error)) DeclareOption {
	return declareOptionFunc(func(c *declareConfig) { c.itemParser = fn })
}

var (
	mapParamsType = reflect.TypeOf(map[string]interface{}{})
	bodyMethods   = map[string]bool{
		http.MethodPost:   true,
		http.MethodPut:    true,
		http.MethodPatch:  true,
		http.MethodDelete: true,
	}
	allowedMethods = map[string]bool{
		http.MethodGet:    true,
		http.MethodPost:   true,
		http.MethodPut:    true,
		http.MethodPatch:  true,
		http.MethodDelete: true,
	}
)

// newDescriptor inspects the declared parameter and result types once and
// produces the immutable descriptor. All declaration checks run here,
// eagerly, so that a malformed operation never reaches the network layer.
// Failures panic with *errors.DeclarationError.
func newDescriptor(method, path string, paramType, resultType reflect.Type, stream bool, opts []DeclareOption) *descriptor {
	op := method + " " + path
	if !allowedMethods[method] {
		cerrors.Declaration(op, "unsupported HTTP method %q", method)
	}
	if !validPathTemplate(path) {
		cerrors.Declaration(op, "malformed path template %q", path)
	}

	d := &descriptor{
		op:        op,
		method:    method,
		path:      path,
		keys:      pathKeys(path),
		paramType: paramType,
		result:    resultType,
	}

	switch {
	case paramType == mapParamsType:
		// Signature-less operation: placeholders are popped from the
		// map at call time and leftovers become query parameters.
		d.mapParams = true
	case paramType.Kind() == reflect.Struct:
		d.params = buildParams(op, method, paramType)
		checkPlaceholders(op, path, d.keys, d.params)
		d.queryStruct, d.queryFields = buildQueryStruct(d.params, paramType)
	default:
		cerrors.Declaration(op, "parameter type must be a struct or map[string]interface{}, got %s", paramType)
	}

	checkResultKind(op, resultType, stream)
	d.strategy = buildStrategy(op, resultType, stream, opts)
	return d
}

func buildParams(op, method string, paramType reflect.Type) []param {
	params := make([]param, 0, paramType.NumField())
	bodyFields := 0
	for i := 0; i < paramType.NumField(); i++ {
		field := paramType.Field(i)
		if field.PkgPath != "" {
			// Unexported.
			continue
		}

		pathKey := field.Tag.Get("path")
		queryKey := field.Tag.Get("query")
		headerKey := field.Tag.Get("header")
		isBody := field.Tag.Get("body") == "true"
		jsonTag := field.Tag.Get("json")

		tags := 0
		for _, has := range []bool{pathKey != "", queryKey != "", headerKey != "", isBody} {
			if has {
				tags++
			}
		}
		if tags > 1 {
			cerrors.Declaration(op, "field %s declares more than one of path, query, header, body", field.Name)
		}

		p := param{
			field:     i,
			fieldName: field.Name,
			typ:       field.Type,
		}
		switch {
		case pathKey != "":
			p.kind = paramPath
			p.name = pathKey
		case queryKey != "":
			p.kind = paramQuery
			p.name, _, _ = strings.Cut(queryKey, ",")
			p.optional = field.Type.Kind() == reflect.Ptr
		case headerKey != "":
			p.kind = paramHeader
			p.name = headerKey
			p.optional = field.Type.Kind() == reflect.Ptr
		case isBody:
			p.kind = paramBody
			p.name = field.Name
			bodyFields++
			if bodyFields > 1 {
				cerrors.Declaration(op, "field %s: only one body field is allowed", field.Name)
			}
			if !bodyMethods[method] {
				cerrors.Declaration(op, "field %s: %s requests cannot carry a body", field.Name, method)
			}
		default:
			if jsonTag == "-" {
				continue
			}
			if !bodyMethods[method] {
				cerrors.Declaration(op, "field %s needs a path, query or header tag for %s requests", field.Name, method)
			}
			p.kind = paramJSON
			name, rest, _ := strings.Cut(jsonTag, ",")
			if name == "" {
				name = field.Name
			}
			p.name = name
			p.omitEmpty = rest == "omitempty" || strings.HasPrefix(rest, "omitempty,") || strings.HasSuffix(rest, ",omitempty")
		}

		if def, has := field.Tag.Lookup("default"); has {
			if p.kind == paramBody {
				cerrors.Declaration(op, "field %s: body fields cannot declare a default", field.Name)
			}
			probe := reflect.New(derefType(field.Type))
			if err := fromString(probe.Interface(), def); err != nil {
				cerrors.Declaration(op, "field %s: default %q does not parse as %s: %v", field.Name, def, field.Type, err)
			}
			p.defaultVal = def
			p.hasDefault = true
		}

		params = append(params, p)
	}
	return params
}

func checkPlaceholders(op, path string, keys []string, params []param) {
	byName := make(map[string]bool, len(params))
	for _, p := range params {
		if p.kind == paramPath {
			byName[p.name] = true
		}
	}
	for _, key := range keys {
		if !byName[key] {
			cerrors.Declaration(op, "path placeholder {%s} has no matching field with tag path:%q", key, key)
		}
	}
	known := make(map[string]bool, len(keys))
	for _, key := range keys {
		known[key] = true
	}
	for _, p := range params {
		if p.kind == paramPath && !known[p.name] {
			cerrors.Declaration(op, "field %s is tagged path:%q, but the template %q has no such placeholder", p.fieldName, p.name, path)
		}
	}
}

// buildQueryStruct builds the synthetic struct type used with the
// gorilla/schema encoder. Only required (value-typed) query fields are
// included; optional pointer fields are handled by the binder so that
// nil values are omitted from the query entirely.
func buildQueryStruct(params []param, paramType reflect.Type) (reflect.Type, []int) {
	var fields []reflect.StructField
	var indexes []int
	for _, p := range params {
		if p.kind != paramQuery || p.optional {
			continue
		}
		fields = append(fields, reflect.StructField{
			Name: p.fieldName,
			Type: p.typ,
			Tag:  reflect.StructTag(fmt.Sprintf("query:%q", p.name)),
		})
		indexes = append(indexes, p.field)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return reflect.StructOf(fields), indexes
}

func checkResultKind(op string, resultType reflect.Type, stream bool) {
	noun := "result"
	if stream {
		noun = "streaming item"
	}
	if resultType.Kind() == reflect.Chan {
		cerrors.Declaration(op, "%s type %s is a channel; use InvokeAsync or a streaming constructor instead", noun, resultType)
	}
	if resultType.Kind() == reflect.Ptr &&
		resultType.Elem().PkgPath() == "github.com/phalt/clientele" &&
		strings.HasPrefix(resultType.Elem().Name(), "Promise[") {
		cerrors.Declaration(op, "%s type %s is a promise; use InvokeAsync instead", noun, resultType)
	}
	if stream && resultType.Kind() == reflect.Interface && resultType.NumMethod() > 0 {
		cerrors.Declaration(op, "streaming item type %s is an interface without a decodable shape", resultType)
	}
}

func buildStrategy(op string, resultType reflect.Type, stream bool, opts []DeclareOption) responseStrategy {
	var cfg declareConfig
	for _, opt := range opts {
		opt.applyDeclare(&cfg)
	}

	if cfg.statusMap != nil && cfg.parser != nil {
		cerrors.Declaration(op, "a status map and a custom parser are mutually exclusive")
	}
	if cfg.itemParser != nil && !stream {
		cerrors.Declaration(op, "a per-item parser requires a streaming operation")
	}

	if stream {
		if cfg.statusMap != nil {
			cerrors.Declaration(op, "streaming operations cannot declare a status map")
		}
		if cfg.parser != nil {
			cerrors.Declaration(op, "streaming operations take ItemParser, not Parser")
		}
		return responseStrategy{
			kind:       strategyStream,
			item:       resultType,
			itemParser: cfg.itemParser,
		}
	}

	if cfg.parser != nil {
		return responseStrategy{kind: strategyParser, parser: cfg.parser}
	}

	if cfg.statusMap != nil {
		statusMap := make(map[int]reflect.Type, len(cfg.statusMap))
		statuses := make([]int, 0, len(cfg.statusMap))
		for code, sample := range cfg.statusMap {
			if code < 100 || code > 599 {
				cerrors.Declaration(op, "status map key %d is not a valid HTTP status code", code)
			}
			if sample == nil {
				cerrors.Declaration(op, "status map entry %d has no type", code)
			}
			sampleType := reflect.TypeOf(sample)
			if !sampleType.AssignableTo(resultType) {
				cerrors.Declaration(op, "status map entry %d: type %s is not assignable to result type %s", code, sampleType, resultType)
			}
			statusMap[code] = sampleType
			statuses = append(statuses, code)
		}
		sort.Ints(statuses)
		return responseStrategy{kind: strategyStatusMap, statusMap: statusMap, statuses: statuses}
	}

	return responseStrategy{kind: strategyPlain}
}

func derefType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

// Descriptor is the exported view of an operation's metadata, kept for
// tooling consumers instead of mutating the declared function's shape.
type Descriptor struct {
	Method string
	Path   string
	Params []ParamInfo
}

// ParamInfo describes one declared parameter.
type ParamInfo struct {
	Name     string
	In       string // "path", "query", "header" or "body"
	Type     string
	Optional bool
	Default  string
}

func (d *descriptor) export() Descriptor {
	out := Descriptor{Method: d.method, Path: d.path}
	for _, p := range d.params {
		out.Params = append(out.Params, ParamInfo{
			Name:     p.name,
			In:       p.kind.String(),
			Type:     p.typ.String(),
			Optional: p.optional,
			Default:  p.defaultVal,
		})
	}
	return out
}
