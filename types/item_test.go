package types

import "testing"

func TestOwnedBy(t *testing.T) {
	item := Item{OwnerID: 7}

	cases := []struct {
		name   string
		caller int
		want   bool
	}{
		{"owner", 7, true},
		{"other user", 8, false},
		{"zero caller", 0, false},
		{"negative caller", -1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := item.OwnedBy(tc.caller); got != tc.want {
				t.Fatalf("OwnedBy(%d) = %v, want %v", tc.caller, got, tc.want)
			}
		})
	}
}

func TestOwnedByUnownedRow(t *testing.T) {
	// A legacy row whose owner columns were both empty resolves to zero and
	// matches nobody.
	item := Item{}
	if item.OwnedBy(0) {
		t.Fatalf("unowned item must not match a zero caller")
	}
}

func TestValidPriority(t *testing.T) {
	for _, valid := range []string{PriorityLow, PriorityMedium, PriorityHigh} {
		if !ValidPriority(valid) {
			t.Fatalf("ValidPriority(%q) = false", valid)
		}
	}
	for _, invalid := range []string{"", "urgent", "MEDIUM"} {
		if ValidPriority(invalid) {
			t.Fatalf("ValidPriority(%q) = true", invalid)
		}
	}
}
