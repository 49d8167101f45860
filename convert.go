package clientele

import (
	"encoding"
	"fmt"
)

// toString renders a path, query or header value. Types implementing
// encoding.TextMarshaler are marshalled with it, everything else goes
// through fmt.Sprintf("%v").
func toString(obj interface{}) (string, error) {
	if marshaler, ok := obj.(encoding.TextMarshaler); ok {
		valueBytes, err := marshaler.MarshalText()
		if err != nil {
			return "", err
		}
		return string(valueBytes), nil
	}
	return fmt.Sprintf("%v", obj), nil
}

// fromString parses a textual value into *objPtr. Types implementing
// encoding.TextUnmarshaler are parsed with it, strings are passed as is,
// everything else goes through fmt.Sscanf.
func fromString(objPtr interface{}, value string) error {
	if unmarshaler, ok := objPtr.(encoding.TextUnmarshaler); ok {
		return unmarshaler.UnmarshalText([]byte(value))
	} else if fieldStrPtr, ok := objPtr.(*string); ok {
		*fieldStrPtr = value
		return nil
	} else if value == "" {
		return nil
	}
	_, err := fmt.Sscanf(value, "%v", objPtr)
	return err
}
