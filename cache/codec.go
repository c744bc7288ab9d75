package cache

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts values to and from the payload stored in the backend.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec stores values as JSON. It is the default codec.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// MsgpackCodec stores values as msgpack. Struct fields must be exported to survive
// the round trip; use msgpack tags to control field names.
type MsgpackCodec struct{}

var _ Codec = MsgpackCodec{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal decodes exactly one msgpack value. Trailing bytes are an error, so a
// payload written in another format is not silently read as its first byte.
func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if r.Len() != 0 {
		return errors.Newf("msgpack: %d unread bytes after value", r.Len())
	}
	return nil
}

// CodecByName returns the codec registered under name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, errors.Newf("cache: unknown codec %q", name)
}

// decode unmarshals data into a new T. An empty payload is an error so that callers
// treat it as a miss.
func decode[T any](codec Codec, data []byte) (T, error) {
	var result T
	if len(data) == 0 {
		return result, errors.New("cache: empty payload")
	}
	if err := codec.Unmarshal(data, &result); err != nil {
		var zero T
		return zero, errors.Wrap(err, "cache: failed to unmarshal value")
	}
	return result, nil
}
