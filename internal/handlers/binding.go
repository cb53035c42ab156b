package handlers

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
)

var errEmptyBody = errors.New("request body is empty")

// BindNestedOrFlat decodes the body into obj. Clients may wrap the object in
// an envelope named key ({"entry": {...}}) or send it bare ({...}); both
// decode the same. Numbers bound into untyped values arrive as json.Number
// so large reference ids and amounts keep every digit. The raw body stays
// cached on the context so a later bind can read it again.
func BindNestedOrFlat(c *gin.Context, key string, obj any) error {
	body, err := rawBody(c)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}

	var envelope map[string]json.RawMessage
	if json.Unmarshal(body, &envelope) == nil {
		if inner, ok := envelope[key]; ok {
			return decodeJSON(inner, obj)
		}
	}
	return decodeJSON(body, obj)
}

func decodeJSON(data []byte, obj any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(obj)
}

func rawBody(c *gin.Context) ([]byte, error) {
	if cached, ok := c.Get(gin.BodyBytesKey); ok {
		if b, ok := cached.([]byte); ok {
			return b, nil
		}
	}
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	c.Set(gin.BodyBytesKey, body)
	return body, nil
}
