package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONPlain(t *testing.T) {
	raw := `{"passes": true}`
	assert.Equal(t, raw, ExtractJSON(raw))
}

func TestExtractJSONCodeFence(t *testing.T) {
	raw := "```json\n{\"passes\": true}\n```"
	assert.Equal(t, `{"passes": true}`, ExtractJSON(raw))

	raw = "```\n[{\"order\": 0}]\n```"
	assert.Equal(t, `[{"order": 0}]`, ExtractJSON(raw))
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	raw := `Here is my judgment: {"result": "accept", "explanation": "ok"} hope that helps`
	assert.Equal(t, `{"result": "accept", "explanation": "ok"}`, ExtractJSON(raw))
}

func TestExtractJSONNone(t *testing.T) {
	assert.Equal(t, "", ExtractJSON("no structured content here"))
}

func TestDecodeResponseValid(t *testing.T) {
	var out struct {
		Passes bool `json:"passes"`
	}
	require.NoError(t, DecodeResponse(`{"passes": true}`, &out))
	assert.True(t, out.Passes)
}

func TestDecodeResponseRepairsTrailingComma(t *testing.T) {
	var out struct {
		Score int `json:"score"`
	}
	require.NoError(t, DecodeResponse(`{"score": 85,}`, &out))
	assert.Equal(t, 85, out.Score)
}

func TestDecodeResponseMalformed(t *testing.T) {
	var out map[string]interface{}
	err := DecodeResponse("the model refused to answer", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"API returned 401 Unauthorized", ErrAuth},
		{"403 Forbidden", ErrAuth},
		{"400 bad request: missing field", ErrInvalidRequest},
		{"429 Too Many Requests", ErrTransient},
		{"502 Bad Gateway", ErrTransient},
		{"dial tcp: connection refused", ErrTransient},
		{"something unexpected", ErrTransient},
	}
	for _, tc := range cases {
		got := Classify(errors.New(tc.in))
		assert.True(t, errors.Is(got, tc.want), "Classify(%q) = %v, want %v", tc.in, got, tc.want)
	}
}

func TestClassifyRetryability(t *testing.T) {
	assert.True(t, IsRetryable(Classify(errors.New("503 service unavailable"))))
	assert.False(t, IsRetryable(Classify(errors.New("401 unauthorized"))))
	assert.False(t, IsRetryable(ErrMalformedResponse))
	assert.False(t, IsRetryable(ErrTimeout))
}
