package twitch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]int{
		"1h23m45s": 5025,
		"45m10s":   2710,
		"59s":      59,
		"2h":       7200,
		"":         0,
		"garbage":  0,
	}
	for raw, want := range cases {
		require.Equal(t, want, parseDuration(raw), "input %q", raw)
	}
}
