package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// decodeJSON decodes the request body into v, rejecting unknown fields the
// way the teacher's transport/http/response/decode.go does.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
