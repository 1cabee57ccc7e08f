package source

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlexDecoding(t *testing.T) {
	t.Parallel()

	var v struct {
		ID     flexString `json:"id"`
		Num    flexString `json:"num"`
		Null   flexString `json:"null"`
		Amount flexFloat  `json:"amount"`
		Text   flexFloat  `json:"text"`
		Bad    flexFloat  `json:"bad"`
	}
	err := json.Unmarshal([]byte(`{"id":"abc","num":123456,"null":null,"amount":"85000.5","text":90000,"bad":"n/a"}`), &v)
	require.NoError(t, err)
	require.Equal(t, flexString("abc"), v.ID)
	require.Equal(t, flexString("123456"), v.Num)
	require.Empty(t, v.Null)
	require.InDelta(t, 85000.5, float64(v.Amount), 0.001)
	require.InDelta(t, 90000, float64(v.Text), 0.001)
	require.Zero(t, v.Bad)
}

func TestMatchesQuery(t *testing.T) {
	t.Parallel()

	require.True(t, matchesQuery("Senior Go Developer", "go developer"))
	require.False(t, matchesQuery("Product Manager", "developer"))
	require.True(t, matchesQuery("Anything", "  "))
}

func TestLocationFlags(t *testing.T) {
	t.Parallel()

	require.True(t, isRemote("Remote - India"))
	require.False(t, isRemote("Pune"))
	require.True(t, isRemoteOrWFH("Work From Home"))
	require.Equal(t, "b", firstNonEmpty("", " ", "b", "c"))
	require.Equal(t, "85000", formatNumber(85000))
}

func TestOptionsTimeoutsAreFallbacks(t *testing.T) {
	t.Parallel()

	var zero Options
	require.Equal(t, defaultTimeout, zero.timeout())
	require.Equal(t, defaultCompanyTimeout, zero.companyTimeout())
	require.Equal(t, defaultMarkerWait, zero.markerWait())

	configured := Options{Timeout: 15 * time.Second, MarkerWait: 10 * time.Second}
	require.Equal(t, 15*time.Second, configured.timeout())
	require.Equal(t, 10*time.Second, configured.companyTimeout())
	require.Equal(t, 8*time.Second, NewLinkedIn(configured).(*scraper).markerWait)
	require.Equal(t, 8*time.Second, NewGlassdoor(configured).(*scraper).markerWait)
	require.Equal(t, 10*time.Second, NewNaukri(configured).(*scraper).markerWait)

	tight := Options{Timeout: 2 * time.Second, MarkerWait: 3 * time.Second}
	require.Equal(t, 2*time.Second, tight.companyTimeout())
	require.Equal(t, 3*time.Second, NewLinkedIn(tight).(*scraper).markerWait)
	require.Equal(t, 3*time.Second, NewWeWorkRemotely(tight).(*scraper).markerWait)
}
