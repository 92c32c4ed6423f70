package position

import (
	"testing"
	"time"
)

func TestReadOnlyPolicy(t *testing.T) {
	tests := []struct {
		name string
		e    *Entity
		want bool
	}{
		{name: "no position", e: nil, want: false},
		{name: "open", e: &Entity{Status: StatusOpen}, want: false},
		{name: "copy follower", e: &Entity{Status: StatusOpen, IsCopyTrading: true}, want: true},
		{name: "copy trader", e: &Entity{Status: StatusOpen, IsCopyTrading: true, IsCopyTrader: true}, want: false},
		{name: "closed", e: &Entity{Status: StatusOpen, Closed: true}, want: true},
		{name: "updating", e: &Entity{Status: StatusOpen, Updating: true}, want: true},
		{name: "opening", e: &Entity{Status: StatusOpening}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.ReadOnly(); got != tt.want {
				t.Fatalf("ReadOnly()=%v, expected %v", got, tt.want)
			}
		})
	}
}

func TestNewerThan(t *testing.T) {
	now := time.Now()
	a := Entity{Version: 2, UpdatedAt: now}
	b := Entity{Version: 1, UpdatedAt: now.Add(time.Hour)}
	if !a.NewerThan(b) {
		t.Fatal("higher version must win regardless of timestamp")
	}
	c := Entity{Version: 2, UpdatedAt: now.Add(time.Second)}
	if !c.NewerThan(a) || a.NewerThan(c) {
		t.Fatal("equal versions must be ordered by UpdatedAt")
	}
	if a.NewerThan(a) {
		t.Fatal("snapshot must not be newer than itself")
	}
}

func TestCloneDoesNotShareTargets(t *testing.T) {
	e := Entity{ReBuyTargets: map[int]Target{1: {TargetPricePercentage: -5}}}
	c := e.Clone()
	c.ReBuyTargets[1] = Target{TargetPricePercentage: -10}
	if e.ReBuyTargets[1].TargetPricePercentage != -5 {
		t.Fatal("clone mutated the original snapshot")
	}
}

func TestTargetIDExternalBands(t *testing.T) {
	seen := make(map[int]TargetID)
	for i := 1; i < DraftIndexBase; i++ {
		id := PersistedID(i)
		seen[id.External()] = id
	}
	for j := 1; j <= 1000; j++ {
		id := DraftID(j)
		n := id.External()
		if n < DraftIndexBase || n > 1999 {
			t.Fatalf("draft %v published as %d, outside local band", id, n)
		}
		if prev, ok := seen[n]; ok {
			t.Fatalf("%v and %v share external number %d", prev, id, n)
		}
		seen[n] = id
	}
	for n, id := range seen {
		back, err := TargetIDFromExternal(n)
		if err != nil {
			t.Fatalf("TargetIDFromExternal(%d): %v", n, err)
		}
		if back != id {
			t.Fatalf("round trip %d: got %v, expected %v", n, back, id)
		}
	}
	if _, err := TargetIDFromExternal(0); err == nil {
		t.Fatal("expected error for 0")
	}
}
