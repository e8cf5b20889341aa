package asr

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	err := &Error{Code: ErrCodeNetworkError, Message: "dial failed", Err: io.ErrUnexpectedEOF}
	assert.Equal(t, "dial failed: unexpected EOF", err.Error())
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	var asrErr *Error
	wrapped := errors.Join(errors.New("other"), err)
	assert.True(t, errors.As(wrapped, &asrErr))
	assert.Equal(t, ErrCodeNetworkError, asrErr.Code)

	assert.Equal(t, "closed", (&Error{Code: ErrCodeClosed, Message: "closed"}).Code.String())
	assert.Equal(t, "closed", (&Error{Code: ErrCodeClosed, Message: "closed"}).Error())
}

func TestDefaultAudioConfig(t *testing.T) {
	cfg := DefaultAudioConfig()
	f := cfg.Format()
	assert.NoError(t, f.Validate())
	assert.Equal(t, 16000, f.SampleRate)
	assert.Equal(t, 2, f.BytesPerFrame())
}
