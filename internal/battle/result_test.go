package battle

import (
	"testing"
	"time"
)

func TestDecideWinner(t *testing.T) {
	s := time.Second
	cases := []struct {
		name   string
		a, b   int
		ta, tb time.Duration
		want   int
	}{
		{"higher score p1", 8, 6, 9 * s, 2 * s, 1},
		{"higher score p2", 7, 9, 1 * s, 30 * s, 2},
		{"tie p1 faster", 5, 5, 3 * s, 4 * s, 1},
		{"tie p2 faster", 10, 10, 8 * s, 6500 * time.Millisecond, 2},
		{"exact draw", 4, 4, 5 * s, 5 * s, 0},
	}
	for _, tc := range cases {
		if got := DecideWinner(tc.a, tc.b, tc.ta, tc.tb); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestResultViewForOutsider(t *testing.T) {
	r := &Result{Player1: Participant{PlayerID: "a"}, Player2: Participant{PlayerID: "b"}, WinnerID: "a", Reason: ReasonCompleted}
	if _, ok := r.ViewFor("c"); ok {
		t.Fatalf("outsider must not get a view")
	}
	views := r.Views()
	if views[0].Verdict != VerdictWin || views[1].Verdict != VerdictLoss || views[1].OpponentID != "a" {
		t.Fatalf("unexpected views: %+v", views)
	}
	if r.Forfeit() {
		t.Fatalf("completed result is not a forfeit")
	}
	if o := r.Outcome(); o.WinnerID != "a" || o.Reason != "completed" {
		t.Fatalf("unexpected outcome: %+v", o)
	}
}
