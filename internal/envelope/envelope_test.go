// ABOUTME: Tests for envelope construction, status codes, and JSON shape
// ABOUTME: The envelope is the gateway's only output; its shape is a contract

package envelope

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		status Status
		code   int
	}{
		{StatusOK, 0},
		{StatusDenied, 1},
		{StatusInvalid, 2},
		{StatusNotFound, 3},
		{StatusInternal, 4},
		{StatusTimeout, 5},
		{Status("made-up"), 4},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.status.Code())
		})
	}
}

func TestNew_CodeMatchesStatus(t *testing.T) {
	e := New(StatusDenied, "authorization failed")
	assert.Equal(t, 1, e.Code)
	assert.Nil(t, e.Payload)
}

func TestWrite_JSONShape(t *testing.T) {
	e := Success("done", map[string]any{"key": "value"})

	var buf bytes.Buffer
	require.NoError(t, e.Write(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "ok", decoded["status"])
	assert.Equal(t, float64(0), decoded["code"])
	assert.Equal(t, "done", decoded["message"])
	assert.Equal(t, map[string]any{"key": "value"}, decoded["payload"])
}

func TestWrite_NullPayloadIsExplicit(t *testing.T) {
	e := New(StatusNotFound, "zone missing")

	var buf bytes.Buffer
	require.NoError(t, e.Write(&buf))
	assert.Contains(t, buf.String(), `"payload":null`)
}

func TestNewf_FormatsMessage(t *testing.T) {
	e := Newf(StatusInvalid, "got %d arguments", 3)
	assert.Equal(t, "got 3 arguments", e.Message)
}
