package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeTransformer_AlwaysIncludesVersion(t *testing.T) {
	tests := []struct {
		name   string
		status string
		input  any
	}{
		{
			name:   "success response",
			status: "200",
			input:  map[string]string{"base_name": "8901"},
		},
		{
			name:   "created response",
			status: "201",
			input:  map[string]string{"name": "8901-1.jpg"},
		},
		{
			name:   "no content response",
			status: "204",
			input:  nil,
		},
		{
			name:   "plain error",
			status: "500",
			input:  errors.New("store offline"),
		},
		{
			name:   "coded error with details",
			status: "409",
			input: &APIError{
				Code:    "CONFLICT",
				Message: "Name already taken",
				Details: map[string]string{"name": "8901.jpg"},
			},
		},
		{
			name:   "huma validation error",
			status: "422",
			input:  &huma.ErrorModel{Status: 422, Detail: "validation failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EnvelopeTransformer(nil, tt.status, tt.input)
			require.NoError(t, err)

			jsonBytes, err := json.Marshal(result)
			require.NoError(t, err)

			var envelope map[string]any
			require.NoError(t, json.Unmarshal(jsonBytes, &envelope))

			require.Contains(t, envelope, "v")
			assert.Equal(t, float64(EnvelopeVersion), envelope["v"])
		})
	}
}

func TestEnvelopeTransformer_SuccessResponse(t *testing.T) {
	data := map[string]string{"next_name": "8901-2.jpg"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok, "Expected APIEnvelope type")

	assert.True(t, envelope.Success)
	assert.Equal(t, data, envelope.Data)
	assert.Empty(t, envelope.Error)

	b, err := json.Marshal(envelope)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"success":true,"data":{"next_name":"8901-2.jpg"}}`, string(b))
}

func TestEnvelopeTransformer_PlainError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "500", errors.New("store offline"))
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok, "Expected APIEnvelope type")

	assert.False(t, envelope.Success)
	assert.Nil(t, envelope.Data)
	assert.Equal(t, "store offline", envelope.Error)
}

func TestEnvelopeTransformer_ErrorWithDetails(t *testing.T) {
	apiErr := &APIError{
		Code:    "VALIDATION",
		Message: "no valid product mappings found",
		Details: map[string]int{"skipped": 3},
	}

	result, err := EnvelopeTransformer(nil, "400", apiErr)
	require.NoError(t, err)

	envelope, ok := result.(APIErrorEnvelope)
	require.True(t, ok, "Expected APIErrorEnvelope type")

	assert.False(t, envelope.Success)
	assert.Equal(t, "VALIDATION", envelope.Code)
	assert.Equal(t, "no valid product mappings found", envelope.Message)
	assert.Equal(t, map[string]int{"skipped": 3}, envelope.Details)

	b, err := json.Marshal(envelope)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"success":false,"error":"no valid product mappings found","code":"VALIDATION","message":"no valid product mappings found","details":{"skipped":3}}`, string(b))
}

func TestEnvelopeTransformer_HumaError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "404", &huma.ErrorModel{Status: 404, Detail: "asset not found"})
	require.NoError(t, err)

	envelope, ok := result.(APIErrorEnvelope)
	require.True(t, ok, "Expected APIErrorEnvelope type")
	assert.Equal(t, "NOT_FOUND", envelope.Code)
	assert.Equal(t, "asset not found", envelope.Error)
}
