package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptchaResponseJSON(t *testing.T) {
	cases := []struct {
		name string
		resp *CaptchaResponse
		want string
	}{
		{"box", NewBoxResponse([]int{10, 20, 110, 220}, 0.87), `{"box":[10,20,110,220],"confidence":0.87}`},
		{"unsupported", NewUnsupportedImageResponse(), `{"box":[],"confidence":0,"message":"unsupported image"}`},
		{"processing", NewProcessingErrorResponse(errors.New("boom")), `{"box":[],"confidence":0,"message":"processing error: boom"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.resp)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(data))
		})
	}
}

func TestFound(t *testing.T) {
	assert.True(t, NewBoxResponse([]int{1, 2, 3, 4}, 0.5).Found())
	assert.False(t, NewUnsupportedImageResponse().Found())
}
