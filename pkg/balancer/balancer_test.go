package balancer

import "testing"

func TestRoundDownTo100Kbps(t *testing.T) {
	cases := map[int64]int64{
		0:         0,
		50_000:    0,
		99_999:    0,
		100_000:   100_000,
		6_099_999: 6_000_000,
		6_100_000: 6_100_000,
	}
	for in, want := range cases {
		if got := RoundDownTo100Kbps(in); got != want {
			t.Fatalf("RoundDownTo100Kbps(%d) = %d, want %d", in, got, want)
		}
	}
}
