package manifests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/status"
)

func newTestRouter(store *mockStore) http.Handler {
	h := NewHandler(nil, newTestService(store))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithPrincipal(req.Context(), &shared.Principal{UserID: 1})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api/manifests", h.MountRoutes)
	return r
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(method, path, strings.NewReader(body)))
	return res
}

func TestHandlerMembershipFlow(t *testing.T) {
	store := newMockStore()
	store.addShipment(1, status.CentralDepotTR)
	store.addShipment(2, status.CentralDepotTR)
	router := newTestRouter(store)

	res := do(router, http.MethodPost, "/api/manifests/", `{"truckPlate":"34 mft 01"}`)
	require.Equal(t, http.StatusCreated, res.Code)

	res = do(router, http.MethodPost, "/api/manifests/1/shipments", `{"shipmentIds":[]}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(router, http.MethodPost, "/api/manifests/1/shipments", `{"shipmentIds":[1,2]}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"count":2}`, res.Body.String())

	res = do(router, http.MethodPut, "/api/manifests/1", `{"currentStage":"TRANSIT"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(router, http.MethodPut, "/api/manifests/1", `{"currentStage":"CUSTOMS_TR"}`)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Manifest Manifest      `json:"manifest"`
		Cascade  CascadeResult `json:"cascade"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Cascade.Updated)

	res = do(router, http.MethodPut, "/api/manifests/1/shipments", `{"shipmentIds":[2]}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"added":0,"removed":1}`, res.Body.String())

	res = do(router, http.MethodGet, "/api/manifests/1", "")
	require.Equal(t, http.StatusOK, res.Code)
	var detail Detail
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &detail))
	require.Len(t, detail.Shipments, 1)
	assert.Equal(t, int64(2), detail.Shipments[0].ID)
}

func TestHandlerUnknownManifest(t *testing.T) {
	router := newTestRouter(newMockStore())
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/manifests/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/manifests/abc", "").Code)
}
