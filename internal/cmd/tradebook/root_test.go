package tradebook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	platformgrpc "github.com/louisbranch/tradebook/internal/platform/grpc"
	"github.com/louisbranch/tradebook/internal/services/billing/api/httpapi"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSplitEvenly(t *testing.T) {
	out, err := run(t, "split", "1171,50", "--parts", "3")
	require.NoError(t, err)

	var result splitResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, money.Cents(117150), result.Total)
	require.Len(t, result.Parts, 3)
	assert.Equal(t, money.Cents(39050), result.Parts[0].Amount)
	assert.Equal(t, money.Cents(39050), result.Parts[2].Amount)
	assert.Equal(t, 3, result.Parts[2].Position)
}

func TestSplitByWeightsLastAbsorbsRemainder(t *testing.T) {
	out, err := run(t, "split", "100.01", "--weights", "1,1,1", "--locale", "en-US")
	require.NoError(t, err)

	var result splitResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Parts, 3)
	assert.Equal(t, money.Cents(3333), result.Parts[0].Amount)
	assert.Equal(t, money.Cents(3335), result.Parts[2].Amount)
	assert.Equal(t, "€33.35", result.Parts[2].Display)
}

func TestSplitRejectsBadInput(t *testing.T) {
	_, err := run(t, "split", "douze euros")
	require.Error(t, err)

	_, err = run(t, "split", "100", "--parts", "0")
	require.ErrorIs(t, err, money.ErrInvalidParts)
}

func TestVoiceSchedulesRelativeDate(t *testing.T) {
	out, err := run(t, "voice", "--now", "2026-03-02T09:00:00+01:00", "--timezone", "Europe/Paris",
		"Rendez-vous chez madame Leroy demain à 14h30")
	require.NoError(t, err)

	var result voiceResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "14:30", result.Command.Time)
	require.NotNil(t, result.Start)
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	assert.True(t, result.Start.Equal(time.Date(2026, 3, 3, 14, 30, 0, 0, paris)), result.Start.String())
}

func TestTravelWithPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"per_km_cents": 50, "road_factor": 1, "round_trip": false, "max_km": 1000}`), 0o600))

	out, err := run(t, "travel", "--from", "48.8566,2.3522", "--to", "45.7640,4.8357", "--policy", path, "--round-trip=false")
	require.NoError(t, err)

	var result travelResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.InDelta(t, 392, result.StraightKm, 2)
	assert.Greater(t, int64(result.Fee), int64(0))
	assert.Contains(t, result.Display, "€")
}

func TestTravelRejectsBadCoordinates(t *testing.T) {
	_, err := run(t, "travel", "--from", "91,0", "--to", "48,2")
	require.Error(t, err)

	_, err = run(t, "travel", "--from", "48.8", "--to", "48,2")
	require.Error(t, err)
}

func TestFollowUpNext(t *testing.T) {
	out, err := run(t, "followup", "next", "--kind", "payment", "--reference", "2026-03-02T00:00:00Z",
		"--index", "1", "--now", "2026-03-10T00:00:00Z")
	require.NoError(t, err)

	var status followUpStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, followup.KindPayment, status.Kind)
	assert.True(t, status.Due)
	assert.Equal(t, 3, status.Remaining)
	require.NotNil(t, status.Step)
	assert.Equal(t, 7, status.Step.DelayDays)
}

func TestFollowUpNextExhausted(t *testing.T) {
	out, err := run(t, "followup", "next", "--kind", "quote", "--reference", "2026-03-02", "--index", "3")
	require.NoError(t, err)

	var status followUpStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Exhausted)
	assert.False(t, status.Due)
	assert.Nil(t, status.Step)
}

func TestFollowUpNextRejectsUnknownKind(t *testing.T) {
	_, err := run(t, "followup", "next", "--kind", "visit", "--reference", "2026-03-02")
	require.ErrorIs(t, err, followup.ErrUnknownKind)
}

func TestFollowUpDueCallsBilling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, httpapi.PathDueFollowUps, r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret", r.Header.Get(httpapi.InternalTokenHeader))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(httpapi.DueFollowUpsResponse{FollowUps: []httpapi.FollowUp{{
			Kind: followup.KindQuote, TargetID: "q-1", Number: "D-2026-0001",
		}}})
	}))
	defer server.Close()

	out, err := run(t, "followup", "due", "--billing-url", server.URL, "--token", "secret", "--limit", "7")
	require.NoError(t, err)

	var resp httpapi.DueFollowUpsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.FollowUps, 1)
	assert.Equal(t, "D-2026-0001", resp.FollowUps[0].Number)
}

func TestTradeLookup(t *testing.T) {
	out, err := run(t, "trade", "plombier")
	require.NoError(t, err)

	var view tradeView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, "plombier", view.ID)
	assert.True(t, view.Known)
	assert.NotEmpty(t, view.Units)
}

func TestTradeLookupUnknownFallsBack(t *testing.T) {
	out, err := run(t, "trade", "astronaute")
	require.NoError(t, err)
	assert.Contains(t, out, "known: false")
	assert.Contains(t, out, "id: generic")
}

func TestTradeList(t *testing.T) {
	out, err := run(t, "trade")
	require.NoError(t, err)

	var list map[string][]tradeView
	require.NoError(t, yaml.Unmarshal([]byte(out), &list))
	assert.NotEmpty(t, list["trades"])
}

func TestHealthAgainstWorker(t *testing.T) {
	server, err := platformgrpc.ServeHealth("127.0.0.1:0", "reminders.loop")
	require.NoError(t, err)
	defer func() { _ = server.Stop() }()

	out, err := run(t, "health", "--addr", server.Addr(), "--timeout", "5s")
	require.NoError(t, err)
	assert.Equal(t, "SERVING\n", out)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tradebook dev\n", out)
}
