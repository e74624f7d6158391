package treasury

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveAccount(t *testing.T) {
	require.Equal(t, "guild:g1", ResolveAccount("g1", ""))
	require.Equal(t, "group:g1:dept-7", ResolveAccount("g1", "dept-7"))
}

func TestClientExecute(t *testing.T) {
	var got transferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transfers", r.URL.Path)
		require.Equal(t, "Bearer ledger-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(transferResponse{Ref: "tx-42"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ledger-token")
	ref, err := c.Execute(context.Background(), "g1", "member-9", 500, map[string]string{"group": "dept-7"})
	require.NoError(t, err)
	require.Equal(t, "tx-42", ref)
	require.Equal(t, "group:g1:dept-7", got.SourceAccount)
	require.Equal(t, "member-9", got.TargetID)
	require.Equal(t, uint64(500), got.Amount)
}

func TestClientExecuteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(transferResponse{Err: "insufficient funds"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ledger-token")
	_, err := c.Execute(context.Background(), "g1", "member-9", 500, nil)
	require.ErrorContains(t, err, "insufficient funds")
}
