package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("save upload: %w", Storage("workspace unwritable", cause))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindStorage, e.Kind)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, New(KindStorage, ""))
	assert.NotErrorIs(t, err, New(KindValidation, ""))
	assert.Equal(t, KindStorage, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(cause))
}

func TestKindProperties(t *testing.T) {
	assert.True(t, KindRateLimit.IsTransient())
	assert.True(t, KindProviderServer.IsTransient())
	assert.False(t, KindRequest.IsTransient())
	assert.False(t, KindValidation.IsTransient())

	assert.True(t, KindExtraction.IsClientFault())
	assert.False(t, KindStorage.IsClientFault())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(KindExtraction))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindStorage))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(KindTimeout))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(KindRateLimit))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(KindProviderServer))
}
