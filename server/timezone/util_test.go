package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, "Asia/Seoul", Normalize("Asia/Seoul", "UTC"))
	require.Equal(t, "America/New_York", Normalize("", "America/New_York"))
	require.Equal(t, "America/New_York", Normalize("Not/AZone", "America/New_York"))
	require.Equal(t, "UTC", Normalize("", ""))
}

func TestLocation(t *testing.T) {
	require.Equal(t, time.UTC, Location(""))
	require.Equal(t, time.UTC, Location("Not/AZone"))
	loc := Location("Asia/Seoul")
	require.Equal(t, "Asia/Seoul", loc.String())
}
