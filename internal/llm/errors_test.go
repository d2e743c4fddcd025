package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatforge/threatforge/internal/types"
)

func codeOf(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var forgeErr *types.ForgeError
	require.ErrorAs(t, err, &forgeErr)
	return forgeErr.Code
}

func TestTranslateErrorByMessage(t *testing.T) {
	scenarios := []struct {
		name string
		err  error
		code types.ErrorCode
	}{
		{"rate limit", errors.New("429 Too Many Requests"), ErrProviderRateLimited},
		{"rate limit wording", errors.New("rate limit exceeded, retry later"), ErrProviderRateLimited},
		{"auth", errors.New("invalid api key provided"), ErrProviderUnauthorized},
		{"unauthorized", errors.New("401 unauthorized"), ErrProviderUnauthorized},
		{"timeout", errors.New("context deadline exceeded"), ErrTimeoutExceeded},
		{"content policy", errors.New("response blocked by content policy"), ErrContentFiltered},
		{"network", errors.New("connection refused"), ErrNetworkFailed},
		{"generic", errors.New("model returned gibberish"), ErrProviderUnavailable},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			translated := TranslateError("anthropic", sc.err)
			assert.Equal(t, sc.code, codeOf(t, translated))
		})
	}
}

func TestTranslateErrorPassesThroughTranslated(t *testing.T) {
	original := NewRateLimitError("openai")

	translated := TranslateError("openai", fmt.Errorf("wrapped: %w", original))

	assert.Equal(t, ErrProviderRateLimited, codeOf(t, translated))
}

func TestTranslateErrorNil(t *testing.T) {
	assert.NoError(t, TranslateError("anthropic", nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRateLimitError("p")))
	assert.True(t, IsRetryable(NewTimeoutError("slow")))
	assert.True(t, IsRetryable(NewNetworkError("down", errors.New("down"))))
	assert.False(t, IsRetryable(NewAuthError("p", errors.New("bad key"))))
	assert.False(t, IsRetryable(NewContentFilteredError("p")))
	assert.False(t, IsRetryable(errors.New("plain error")))
}
