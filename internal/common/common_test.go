package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestIdemRejectsReplayAndReleasesOnServerError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	status := http.StatusCreated
	calls := 0
	h := Idem{R: rdb, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	send := func(ctxPrincipal *Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.Header.Set("Idempotency-Key", "abc")
		if ctxPrincipal != nil {
			req = req.WithContext(WithPrincipal(req.Context(), *ctxPrincipal))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	alice := Principal{Subject: "CUST-1001", Role: RoleCustomer}
	bob := Principal{Subject: "CUST-1002", Role: RoleCustomer}

	require.Equal(t, http.StatusCreated, send(&alice).Code)
	require.Equal(t, http.StatusConflict, send(&alice).Code)
	require.Equal(t, http.StatusCreated, send(&bob).Code)
	require.Equal(t, 2, calls)

	status = http.StatusInternalServerError
	require.Equal(t, http.StatusInternalServerError, send(nil).Code)
	require.Equal(t, http.StatusInternalServerError, send(nil).Code)
	require.Equal(t, 4, calls)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page, meta := Paginate(items, 2, 2)
	require.Equal(t, []int{3, 4}, page)
	require.Equal(t, 5, meta.TotalItems)

	page, _ = Paginate(items, 3, 2)
	require.Equal(t, []int{5}, page)

	page, _ = Paginate(items, 9, 2)
	require.Empty(t, page)
}

func TestClientIPHonoursProxyOnlyWhenTrusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "10.0.0.1", ClientIP(req, false))
	require.Equal(t, "203.0.113.9", ClientIP(req, true))
}

func TestValidateStructReportsJSONFieldName(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
	}
	err := ValidateStruct(payload{Email: "nope"})
	var fe FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "email", fe.Field)
	require.Equal(t, "email", fe.Tag)
}
