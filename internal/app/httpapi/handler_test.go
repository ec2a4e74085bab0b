package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	app "github.com/familygrove/engine/internal/app"
)

func newServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	application, err := app.New(app.Options{}, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(application, cfg, nil))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestMemberTaskFlow(t *testing.T) {
	srv := newServer(t, Config{})

	resp, child := doJSON(t, http.MethodPost, srv.URL+"/members", map[string]any{
		"family_id": "f1", "name": "Ben", "role": "child",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	childID := child["ID"].(string)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/tasks", map[string]any{
		"family_id": "f1", "title": "Dishes", "point_value": 10, "frequency": "once",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	taskID := created["ID"].(string)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/tasks/"+taskID+"/claim", map[string]any{
		"member_id": childID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/tasks/"+taskID+"/complete", map[string]any{
		"member_id": childID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, balance := doJSON(t, http.MethodGet, srv.URL+"/members/"+childID+"/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(10), balance["balance"])
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newServer(t, Config{})

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/members/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/members", map[string]any{
		"family_id": "f1", "name": "Ana", "role": "wizard",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown JSON fields are rejected.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/members", map[string]any{
		"family_id": "f1", "name": "Ana", "role": "parent", "surprise": true,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRedeemInsufficientBalanceConflict(t *testing.T) {
	srv := newServer(t, Config{})

	resp, child := doJSON(t, http.MethodPost, srv.URL+"/members", map[string]any{
		"family_id": "f1", "name": "Ben", "role": "child",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	childID := child["ID"].(string)

	resp, reward := doJSON(t, http.MethodPost, srv.URL+"/rewards", map[string]any{
		"family_id": "f1", "title": "Ice cream", "point_cost": 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rewardID := reward["ID"].(string)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/rewards/"+rewardID+"/redeem", map[string]any{
		"member_id": childID,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, body["error"], "balance")
}

func TestFeatureToggleAndAvailability(t *testing.T) {
	srv := newServer(t, Config{})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/families/f1/features/toggle", map[string]any{
		"feature": "moodHistory", "enabled": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The dependency came along.
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/families/f1/features/moodTracking", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["available"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/families/f1/features/telepathy", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsReplayBuffer(t *testing.T) {
	srv := newServer(t, Config{})

	resp, child := doJSON(t, http.MethodPost, srv.URL+"/members", map[string]any{
		"family_id": "f1", "name": "Ben", "role": "child",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	childID := child["ID"].(string)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/members/"+childID+"/earn", map[string]any{
		"amount": 25, "reason": "chores",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/events?account_id="+childID, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var events []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&events))
	require.NotEmpty(t, events)
	require.Equal(t, "ledger.balance_changed", events[0]["type"])
}

func TestRateLimiting(t *testing.T) {
	srv := newServer(t, Config{RateLimitPerSecond: 1, RateLimitBurst: 2})

	statuses := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", "10.0.0.9")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	require.Equal(t, http.StatusOK, statuses[0])
	require.Contains(t, statuses, http.StatusTooManyRequests)
}

func TestAuditTrail(t *testing.T) {
	srv := newServer(t, Config{AuditLimit: 10})

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/members/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/audit", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var entries []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&entries))
	require.GreaterOrEqual(t, len(entries), 2)
	require.Equal(t, "/healthz", entries[0]["path"])
	require.Equal(t, float64(http.StatusNotFound), entries[1]["status"])
}
