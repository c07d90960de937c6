package synthetic

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/court-case-fetcher/internal/types"
)

func TestGenerate_Shape(t *testing.T) {
	record, orders := Generate("W.P.(C)", "1234", 2023)

	assert.Contains(t, record.Title, "W.P.(C)/1234/2023")
	assert.Equal(t, "Pending", record.Status)
	assert.Equal(t, types.NewDate(2023, time.January, 15), record.FilingDate)
	assert.Equal(t, types.NewDate(2024, time.February, 20), record.NextHearingDate)

	require.Len(t, orders, 2)
	assert.Equal(t, "Interim Order", orders[0].Title)
	assert.Equal(t, "Order", orders[0].OrderType)
	assert.Equal(t, "2023-06-10", orders[0].OrderDate.Format("2006-01-02"))
	assert.Equal(t, "Final Judgment", orders[1].Title)
	assert.Equal(t, "Judgment", orders[1].OrderType)
	assert.Equal(t, "2023-12-15", orders[1].OrderDate.Format("2006-01-02"))
}

func TestGenerate_IsDeterministic(t *testing.T) {
	r1, o1 := Generate("LPA", "77", 2019)
	r2, o2 := Generate("LPA", "77", 2019)

	if diff := cmp.Diff(r1, r2); diff != "" {
		t.Errorf("case record differs between calls (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(o1, o2); diff != "" {
		t.Errorf("orders differ between calls (-first +second):\n%s", diff)
	}

	b1, err := json.Marshal(struct {
		R types.CaseRecord
		O []types.OrderRecord
	}{r1, o1})
	require.NoError(t, err)
	b2, err := json.Marshal(struct {
		R types.CaseRecord
		O []types.OrderRecord
	}{r2, o2})
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestGenerate_OrdersAreFreshSlices(t *testing.T) {
	_, o1 := Generate("LPA", "77", 2019)
	o1[0].Title = "mutated"
	_, o2 := Generate("LPA", "77", 2019)
	assert.Equal(t, "Interim Order", o2[0].Title)
}

func TestOutcome(t *testing.T) {
	req, err := types.NewSearchRequest("W.P.(C)", "1234", 2023)
	require.NoError(t, err)

	out := Outcome(req, types.AdvisoryCaptcha, nil)
	assert.Equal(t, types.OutcomeDegraded, out.Kind)
	assert.Equal(t, types.OriginSynthetic, out.Origin)
	assert.Equal(t, types.AdvisoryCaptcha, out.Advisory)
	assert.Equal(t, RawMarkup, out.RawMarkup)
	assert.Len(t, out.Orders, 2)
}
