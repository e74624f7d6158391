package council_test

import (
	"fmt"
	"testing"

	"github.com/stake-plus/council-gov/src/council"
	"github.com/stretchr/testify/require"
)

func TestThresholdIsStrictMajority(t *testing.T) {
	for n := 1; n <= 100; n++ {
		th := council.Threshold(n)
		require.LessOrEqual(t, th, n, "threshold must be reachable for n=%d", n)
		require.Greater(t, 2*th, n, "threshold must be a strict majority for n=%d", n)
		require.Equal(t, n/2+1, th)
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name  string
		tally council.Tally
		n     int
		want  council.Outcome
	}{
		{"no votes", council.Tally{}, 5, council.StillOpen},
		{"quorum reached", council.Tally{Approve: 3}, 5, council.Approved},
		{"quorum exceeded", council.Tally{Approve: 5}, 5, council.Approved},
		{"majority rejects", council.Tally{Reject: 3}, 5, council.RejectedEarly},
		{"abstain shrinks the pool", council.Tally{Approve: 1, Reject: 1, Abstain: 2}, 5, council.StillOpen},
		{"abstain never approves", council.Tally{Abstain: 5}, 5, council.RejectedEarly},
		{"one approve short", council.Tally{Approve: 2, Reject: 2}, 5, council.StillOpen},
		{"sole voter decides", council.Tally{Approve: 1}, 1, council.Approved},
		{"sole voter rejects", council.Tally{Reject: 1}, 1, council.RejectedEarly},
		{"even electorate needs half plus one", council.Tally{Approve: 2, Reject: 2}, 4, council.RejectedEarly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := council.Decide(tc.tally, tc.n, council.Threshold(tc.n))
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDecideKnownScenarios(t *testing.T) {
	// N=3: two approvals resolve it.
	require.Equal(t, council.StillOpen, council.Decide(council.Tally{Approve: 1}, 3, 2))
	require.Equal(t, council.Approved, council.Decide(council.Tally{Approve: 2}, 3, 2))

	// N=5: approve, reject, abstain, reject. The last unvoted member cannot
	// lift approvals to 3.
	tally := council.Tally{Approve: 1, Reject: 2, Abstain: 1}
	require.Equal(t, council.RejectedEarly, council.Decide(tally, 5, 3))
}

func TestDecideExhaustive(t *testing.T) {
	// Every reachable tally for small electorates: the outcome is a pure
	// function of the inputs and internally consistent.
	for n := 1; n <= 7; n++ {
		th := council.Threshold(n)
		for a := 0; a <= n; a++ {
			for r := 0; a+r <= n; r++ {
				for ab := 0; a+r+ab <= n; ab++ {
					tally := council.Tally{Approve: a, Reject: r, Abstain: ab}
					name := fmt.Sprintf("n=%d a=%d r=%d ab=%d", n, a, r, ab)

					got := council.Decide(tally, n, th)
					require.Equal(t, got, council.Decide(tally, n, th), name)

					switch {
					case a >= th:
						require.Equal(t, council.Approved, got, name)
					case a+(n-tally.Total()) < th:
						require.Equal(t, council.RejectedEarly, got, name)
					default:
						require.Equal(t, council.StillOpen, got, name)
					}
				}
			}
		}
	}
}
