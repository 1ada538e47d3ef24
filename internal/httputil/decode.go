package httputil

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// ReadError decodes the error envelope from a failed response. When the body
// is not an envelope the status text is used as the message.
func ReadError(resp *http.Response) ErrorDetail {
	detail := ErrorDetail{Message: http.StatusText(resp.StatusCode)}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return detail
	}

	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return detail
	}
	if envelope.Error.Code != "" {
		detail.Code = envelope.Error.Code
	}
	if envelope.Error.Message != "" {
		detail.Message = envelope.Error.Message
	}
	return detail
}
