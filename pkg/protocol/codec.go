package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldID       = "id"
	fieldType     = "type"
	fieldCode     = "code"
	fieldDuration = "duration"
)

// Decode parses a single framed payload (without its delimiter) into a Request.
// Unknown type values are not an error; they are preserved in Request.Type.
func Decode(payload []byte) (Request, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return Request{}, err
	}

	id, err := requiredInt(fields, fieldID)
	if err != nil {
		return Request{}, err
	}
	typ, err := requiredInt(fields, fieldType)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		ID:   id,
		Type: RequestType(typ),
	}

	delete(fields, fieldID)
	delete(fields, fieldType)

	// A code or duration of the wrong JSON type stays in Payload, so the
	// request is still answered (an empty code is simply not recognized).
	if code, ok := fields[fieldCode].(string); ok {
		req.Code = code
		delete(fields, fieldCode)
	} else if fields[fieldCode] == nil {
		delete(fields, fieldCode)
	}

	if n, ok := fields[fieldDuration].(json.Number); ok {
		if d, err := n.Float64(); err == nil {
			req.Duration = &d
			delete(fields, fieldDuration)
		}
	} else if fields[fieldDuration] == nil {
		delete(fields, fieldDuration)
	}

	if len(fields) > 0 {
		payloadStruct, err := structpb.NewStruct(normalizeNumbers(fields).(map[string]any))
		if err != nil {
			return Request{}, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
		}
		req.Payload = payloadStruct
	}

	return req, nil
}

// Encode serializes a Response as compact JSON followed by the NUL delimiter.
func Encode(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return append(data, Delimiter), nil
}

// EncodeRequest serializes a Request the way a controller sends it.
// Payload fields never override id, type, code or duration.
func EncodeRequest(req Request) ([]byte, error) {
	obj := make(map[string]any)
	if req.Payload != nil {
		for k, v := range req.Payload.AsMap() {
			obj[k] = v
		}
	}
	obj[fieldID] = req.ID
	obj[fieldType] = int(req.Type)
	if req.Code != "" {
		obj[fieldCode] = req.Code
	}
	if req.Duration != nil {
		obj[fieldDuration] = *req.Duration
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return append(data, Delimiter), nil
}

// DecodeResponse parses a framed payload produced by Encode.
func DecodeResponse(payload []byte) (Response, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return Response{}, err
	}

	id, err := requiredInt(fields, fieldID)
	if err != nil {
		return Response{}, err
	}
	typ, err := requiredInt(fields, fieldType)
	if err != nil {
		return Response{}, err
	}

	resp := Response{ID: id, Type: ResponseType(typ)}

	if _, ok := fields["status"]; ok {
		v, err := requiredInt(fields, "status")
		if err != nil {
			return Response{}, err
		}
		status := EffectStatus(v)
		resp.Status = &status
	}
	if _, ok := fields["state"]; ok {
		v, err := requiredInt(fields, "state")
		if err != nil {
			return Response{}, err
		}
		state := int(v)
		resp.State = &state
	}
	if raw, ok := fields[fieldDuration]; ok {
		n, ok := raw.(json.Number)
		if !ok {
			return Response{}, &DecodeError{Field: fieldDuration, Err: ErrInvalidField}
		}
		d, err := n.Float64()
		if err != nil {
			return Response{}, &DecodeError{Field: fieldDuration, Err: ErrInvalidField}
		}
		resp.Duration = &d
	}

	return resp, nil
}

func decodeObject(payload []byte) (map[string]any, error) {
	if !utf8.Valid(payload) {
		return nil, &DecodeError{Err: ErrInvalidUTF8}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}
	if fields == nil {
		return nil, &DecodeError{Err: ErrMalformedJSON}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Err: fmt.Errorf("%w: trailing data after object", ErrMalformedJSON)}
	}
	return fields, nil
}

// requiredInt extracts an integral number. 7 and 7.0 are both accepted.
func requiredInt(fields map[string]any, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok || raw == nil {
		return 0, &DecodeError{Field: name, Err: ErrMissingField}
	}
	n, ok := raw.(json.Number)
	if !ok {
		return 0, &DecodeError{Field: name, Err: ErrInvalidField}
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, &DecodeError{Field: name, Err: ErrInvalidField}
	}
	return int64(f), nil
}

// normalizeNumbers converts json.Number leaves to float64 so structpb accepts them.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]any:
		for k, child := range t {
			t[k] = normalizeNumbers(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = normalizeNumbers(child)
		}
		return t
	default:
		return v
	}
}
