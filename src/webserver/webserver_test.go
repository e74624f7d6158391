package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/council-gov/src/config"
	"github.com/stake-plus/council-gov/src/council"
	"github.com/stake-plus/council-gov/src/store"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct{ calls int }

func (f *fakeExecutor) Execute(ctx context.Context, guildID, targetID string, amount uint64, metadata map[string]string) (string, error) {
	f.calls++
	return "tx-0001", nil
}

func newTestServer(t *testing.T) (*gin.Engine, *council.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	svc := council.NewService(council.ServiceConfig{
		Store:    mem,
		Executor: &fakeExecutor{},
		Window:   72 * time.Hour,
	})
	cfg := config.Config{
		JWTSecret:    "test-secret",
		ServiceToken: "svc-token",
	}
	return New(cfg, svc, nil, nil), svc
}

func doJSON(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func memberToken(t *testing.T, r *gin.Engine, memberID string) string {
	t.Helper()
	w := doJSON(r, "POST", "/v1/auth/token", "svc-token", gin.H{"memberId": memberID})
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Token
}

func TestTokenExchange(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(r, "POST", "/v1/auth/token", "wrong-token", gin.H{"memberId": "1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token := memberToken(t, r, "1")
	require.NotEmpty(t, token)
}

func TestRoutesRequireJWT(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(r, "GET", "/v1/proposals", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, "GET", "/v1/proposals", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProposalLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestServer(t)
	proposer := memberToken(t, r, "1")

	w := doJSON(r, "POST", "/v1/proposals", proposer, gin.H{
		"guildId":    "guild-1",
		"targetId":   "target-9",
		"amount":     250,
		"electorate": []string{"1", "2", "3"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		SnapshotN  int    `json:"snapshotN"`
		ThresholdT int    `json:"thresholdT"`
		ProposerID string `json:"proposerId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "ACTIVE", created.Status)
	require.Equal(t, 3, created.SnapshotN)
	require.Equal(t, 2, created.ThresholdT)
	require.Equal(t, "1", created.ProposerID)

	// First approval keeps it open.
	w = doJSON(r, "POST", fmt.Sprintf("/v1/proposals/%s/votes", created.ID), proposer,
		gin.H{"choice": "approve"})
	require.Equal(t, http.StatusCreated, w.Code)
	var voted struct {
		Status string        `json:"status"`
		Tally  council.Tally `json:"tally"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &voted))
	require.Equal(t, "ACTIVE", voted.Status)
	require.Equal(t, council.Tally{Approve: 1}, voted.Tally)

	// Cancellation is off the table after the first vote.
	w = doJSON(r, "DELETE", "/v1/proposals/"+created.ID, proposer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"cancelled":false}`, w.Body.String())

	// Second approval reaches quorum and executes.
	second := memberToken(t, r, "2")
	w = doJSON(r, "POST", fmt.Sprintf("/v1/proposals/%s/votes", created.ID), second,
		gin.H{"choice": "approve"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &voted))
	require.Equal(t, "EXECUTED", voted.Status)

	// Voting on a resolved proposal is a conflict.
	third := memberToken(t, r, "3")
	w = doJSON(r, "POST", fmt.Sprintf("/v1/proposals/%s/votes", created.ID), third,
		gin.H{"choice": "reject"})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestVoteErrorMapping(t *testing.T) {
	r, _ := newTestServer(t)
	token := memberToken(t, r, "outsider")

	w := doJSON(r, "POST", "/v1/proposals/missing/votes", token, gin.H{"choice": "approve"})
	require.Equal(t, http.StatusNotFound, w.Code)

	proposer := memberToken(t, r, "1")
	w = doJSON(r, "POST", "/v1/proposals", proposer, gin.H{
		"guildId":    "guild-1",
		"targetId":   "target-9",
		"amount":     100,
		"electorate": []string{"1", "2", "3"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, "POST", fmt.Sprintf("/v1/proposals/%s/votes", created.ID), token,
		gin.H{"choice": "approve"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, "POST", fmt.Sprintf("/v1/proposals/%s/votes", created.ID), proposer,
		gin.H{"choice": "maybe"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateKeepsAttachmentURLVerbatim(t *testing.T) {
	r, _ := newTestServer(t)
	token := memberToken(t, r, "1")

	rawURL := "https://files.example.com/receipt.pdf?id=7&sig=abc"
	w := doJSON(r, "POST", "/v1/proposals", token, gin.H{
		"guildId":       "guild-1",
		"targetId":      "target-9",
		"amount":        100,
		"electorate":    []string{"1", "2"},
		"attachmentUrl": rawURL,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		AttachmentURL string `json:"attachmentUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, rawURL, created.AttachmentURL)
}

func TestCreateValidationOverHTTP(t *testing.T) {
	r, _ := newTestServer(t)
	token := memberToken(t, r, "1")

	// Missing electorate with no Discord session configured.
	w := doJSON(r, "POST", "/v1/proposals", token, gin.H{
		"guildId":  "guild-1",
		"targetId": "target-9",
		"amount":   100,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportOverHTTP(t *testing.T) {
	r, svc := newTestServer(t)
	token := memberToken(t, r, "1")

	prop, err := svc.Create(context.Background(), council.CreateParams{
		GuildID:    "guild-1",
		ProposerID: "1",
		TargetID:   "target-9",
		Amount:     100,
		Electorate: []string{"1", "2"},
	})
	require.NoError(t, err)

	start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w := doJSON(r, "GET", "/v1/export?guild=guild-1&start="+start+"&end="+end, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var records []struct {
		ProposalID string `json:"proposalId"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	require.Equal(t, prop.ID, records[0].ProposalID)
	require.Equal(t, "ACTIVE", records[0].Status)

	w = doJSON(r, "GET", "/v1/export?guild=guild-1&start=notatime&end="+end, token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
