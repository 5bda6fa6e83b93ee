package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the "v" field of every JSON response. Clients reject
// versions they do not know.
const EnvelopeVersion = 1

// APIEnvelope is the response shape for successes and plain errors.
type APIEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// APIErrorEnvelope is the response shape for coded errors.
type APIErrorEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps every huma response body in the client envelope.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Error:   body.Message,
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}, nil
	case *huma.ErrorModel:
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Error:   body.Detail,
			Code:    statusToCode(body.Status),
			Message: body.Detail,
		}, nil
	case error:
		return APIEnvelope{Version: EnvelopeVersion, Error: body.Error()}, nil
	default:
		return APIEnvelope{Version: EnvelopeVersion, Success: true, Data: v}, nil
	}
}
