package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBody = 64 << 10

var ErrBodyTooLarge = errors.New("request body too large")

// ErrorBody is the uniform failure envelope.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{Error: message, Code: code})
}

// WriteReason reports a refusal with a machine-readable reason code.
func WriteReason(w http.ResponseWriter, status int, message, reason string) {
	WriteJSON(w, status, ErrorBody{Error: message, Reason: reason})
}

// WriteRaw writes pre-rendered bytes such as cached XML.
func WriteRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// ReadJSON decodes a bounded JSON body into dst.
func ReadJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody+1))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) && r.ContentLength > maxBody {
			return ErrBodyTooLarge
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
