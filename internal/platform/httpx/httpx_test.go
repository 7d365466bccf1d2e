package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mftcargo/tracker/internal/shared"
)

func TestRespondErrorMapsKinds(t *testing.T) {
	missing := fmt.Errorf("shipment 4: %w", shared.ErrNotFound)
	cases := map[error]int{
		shared.Validationf("bad"):     http.StatusBadRequest,
		shared.ErrInvalidCredentials:  http.StatusUnauthorized,
		missing:                       http.StatusNotFound,
		shared.ErrConflict:            http.StatusConflict,
		shared.ErrIdempotencyConflict: http.StatusConflict,
		errors.New("disk full"):       http.StatusInternalServerError,
	}
	for err, want := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, err)
		assert.Equal(t, want, rr.Code, err.Error())
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		assert.Equal(t, want >= 500, IsServerError(err), err.Error())
	}
}

func TestInternalErrorsHideDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: password authentication failed"))

	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "Internal Error", body.Title)
	assert.Empty(t, body.Detail)
}

func TestDecodeJSONMalformed(t *testing.T) {
	var target struct{ Name string }
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.ErrorIs(t, DecodeJSON(req, &target), shared.ErrValidation)
}

func TestIDParam(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	var gotErr error
	r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = IDParam(req, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/17", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(17), got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/-2", nil))
	assert.ErrorIs(t, gotErr, shared.ErrValidation)
}
