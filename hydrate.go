package clientele

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"

	cerrors "github.com/phalt/clientele/errors"
)

var protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

// hydrate converts a normalized response into the declared result type.
// Decision order: custom parser, status map, plain annotation. Pure
// function of the descriptor and the response, shared by the blocking
// and the asynchronous drivers.
func hydrate(d *descriptor, resp *Response) (interface{}, error) {
	switch d.strategy.kind {
	case strategyParser:
		// The parser's result is returned unmodified.
		return d.strategy.parser(resp)
	case strategyStatusMap:
		target, declared := d.strategy.statusMap[resp.StatusCode]
		if !declared {
			return nil, &cerrors.ProtocolError{
				Status:   resp.StatusCode,
				Expected: d.strategy.statuses,
				Body:     bodyPrefix(resp.Body),
			}
		}
		return decodeInto(target, resp)
	default:
		return decodeInto(d.result, resp)
	}
}

// decodeInto decodes the response body into a fresh value of type rt.
// An absent body yields the type's zero value. Structural targets
// require the payload to be a key/value structure and are checked by
// the schema-validation layer afterwards.
func decodeInto(rt reflect.Type, resp *Response) (interface{}, error) {
	if len(resp.Body) == 0 {
		return reflect.Zero(rt).Interface(), nil
	}

	if resp.isProtobuf() && rt.Kind() == reflect.Ptr && rt.Implements(protoMessageType) {
		msg := reflect.New(rt.Elem()).Interface().(proto.Message)
		if err := proto.Unmarshal(resp.Body, msg); err != nil {
			return nil, fmt.Errorf("failed to decode protobuf response: %w", err)
		}
		return msg, nil
	}

	base := derefType(rt)
	needsObject := base.Kind() == reflect.Struct || base.Kind() == reflect.Map

	switch {
	case resp.isJSON():
		if needsObject && !startsWithObject(resp.Body) {
			return nil, &cerrors.TypeError{Type: rt.String(), Reason: "response payload is not a key/value structure"}
		}
		ptr := reflect.New(rt)
		if err := json.Unmarshal(resp.Body, ptr.Interface()); err != nil {
			return nil, err
		}
		out := ptr.Elem().Interface()
		if err := validateDecoded(rt, ptr.Elem()); err != nil {
			return nil, err
		}
		return out, nil
	case resp.isYAML():
		ptr := reflect.New(rt)
		if err := yaml.Unmarshal(resp.Body, ptr.Interface()); err != nil {
			if needsObject {
				return nil, &cerrors.TypeError{Type: rt.String(), Reason: "response payload is not a key/value structure"}
			}
			return nil, err
		}
		out := ptr.Elem().Interface()
		if err := validateDecoded(rt, ptr.Elem()); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return decodeText(rt, resp, needsObject)
	}
}

func decodeText(rt reflect.Type, resp *Response, needsObject bool) (interface{}, error) {
	if needsObject {
		return nil, &cerrors.TypeError{Type: rt.String(), Reason: "text response is not a key/value structure"}
	}
	switch {
	case rt.Kind() == reflect.String:
		rv := reflect.New(rt).Elem()
		rv.SetString(resp.Text())
		return rv.Interface(), nil
	case rt == reflect.TypeOf([]byte(nil)):
		return resp.Body, nil
	case rt.Kind() == reflect.Interface && rt.NumMethod() == 0:
		return resp.Text(), nil
	default:
		ptr := reflect.New(rt)
		if err := fromString(ptr.Interface(), resp.Text()); err != nil {
			return nil, fmt.Errorf("failed to parse text response as %s: %w", rt, err)
		}
		return ptr.Elem().Interface(), nil
	}
}

// validateDecoded runs the schema-validation layer on structural
// payloads. Its ValidationErrors surface unmodified.
func validateDecoded(rt reflect.Type, v reflect.Value) error {
	if derefType(rt).Kind() != reflect.Struct {
		return nil
	}
	if rt.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	err := validate.Struct(v.Interface())
	if err == nil {
		return nil
	}
	if _, ok := err.(*validator.InvalidValidationError); ok {
		return nil
	}
	return err
}

func startsWithObject(body []byte) bool {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b == '{'
		}
	}
	return false
}
