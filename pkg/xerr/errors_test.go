package xerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("mailbox full")
	err := Wrap(cause, EngineBusy, "")

	assert.ErrorIs(t, err, cause)
	code, msg := CodeOf(err)
	assert.Equal(t, EngineBusy, code)
	assert.Equal(t, "撮合繁忙", msg)
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(code))
	assert.Nil(t, Wrap(nil, EngineBusy, ""))
}

func TestCodeOf_PlainError(t *testing.T) {
	code, _ := CodeOf(errors.New("x"))
	assert.Equal(t, ServerCommonError, code)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(code))
}
