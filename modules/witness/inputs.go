package witness

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// ErrInput signals an input document the engine cannot interpret.
var ErrInput = errors.New("witness: invalid input document")

// ParseInputs decodes a JSON object of circuit inputs, preserving the
// declaration order of its keys. Values may be numbers, decimal or 0x-hex
// strings, or arbitrarily nested arrays of those; arrays are flattened
// row-major to match the module's signal layout.
func ParseInputs(r io.Reader) ([]Input, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: top level must be an object", ErrInput)
	}

	var inputs []Input
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInput, err)
		}
		name := tok.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: value of %q: %v", ErrInput, name, err)
		}
		values, err := flattenValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: value of %q: %v", ErrInput, name, err)
		}
		inputs = append(inputs, Input{Name: name, Values: values})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	return inputs, nil
}

// ParseInputsString is a convenience wrapper for in-memory documents.
func ParseInputsString(s string) ([]Input, error) {
	return ParseInputs(strings.NewReader(s))
}

func flattenValue(v any) ([]*big.Int, error) {
	switch x := v.(type) {
	case []any:
		var out []*big.Int
		for _, elem := range x {
			sub, err := flattenValue(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case json.Number:
		return singleValue(x.String())
	case string:
		return singleValue(x)
	case bool:
		if x {
			return []*big.Int{big.NewInt(1)}, nil
		}
		return []*big.Int{big.NewInt(0)}, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

func singleValue(s string) ([]*big.Int, error) {
	v := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		_, ok = v.SetString(s[2:], 16)
	} else {
		_, ok = v.SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	return []*big.Int{v}, nil
}
