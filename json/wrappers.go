package json

import (
	"bytes"

	"github.com/Velocidex/json"
	"github.com/Velocidex/ordereddict"
)

func MarshalWithOptions(v interface{}, opts *json.EncOpts) ([]byte, error) {
	if opts == nil {
		return json.Marshal(v)
	}
	return json.MarshalWithOptions(v, opts)
}

func Marshal(v interface{}) ([]byte, error) {
	opts := NewEncOpts()
	return json.MarshalWithOptions(v, opts)
}

func MustMarshalString(v interface{}) string {
	result, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(result)
}

func MarshalIndent(v interface{}) ([]byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = json.Indent(&buf, b, "", " ")
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(b []byte, v interface{}) error {
	return json.Unmarshal(b, v)
}

// Dicts encode in insertion order. Broadcast and notification
// payloads rely on stable key order for readable logs and golden
// tests.
func marshalOrderedDict(v interface{}, opts *json.EncOpts) ([]byte, error) {
	dict, ok := v.(*ordereddict.Dict)
	if !ok {
		return nil, json.EncoderCallbackSkip
	}

	buf := bytes.Buffer{}
	buf.WriteByte('{')

	first := true
	for _, key := range dict.Keys() {
		encoded_key, err := json.MarshalWithOptions(key, opts)
		if err != nil {
			continue
		}

		value, pres := dict.Get(key)
		if !pres {
			value = nil
		}

		encoded_value, err := json.MarshalWithOptions(value, opts)
		if err != nil {
			encoded_value = []byte("null")
		}

		if !first {
			buf.WriteByte(',')
		}
		first = false

		buf.Write(encoded_key)
		buf.WriteByte(':')
		buf.Write(encoded_value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func init() {
	RegisterCustomEncoder(ordereddict.NewDict(), marshalOrderedDict)
}
