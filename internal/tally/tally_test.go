package tally

import (
	"math"
	"testing"

	"github.com/mmynk/choremates/internal/models"
)

func completions(by ...string) []*models.ChoreCompletion {
	out := make([]*models.ChoreCompletion, 0, len(by))
	for _, b := range by {
		out = append(out, &models.ChoreCompletion{CompletedBy: b})
	}
	return out
}

func TestChoreBalance(t *testing.T) {
	tests := []struct {
		name         string
		members      []string
		completions  []*models.ChoreCompletion
		wantErr      bool
		validateFunc func(t *testing.T, balances []MemberBalance, catchups []Catchup)
	}{
		{
			name:        "uneven two-person household",
			members:     []string{"alice", "bob"},
			completions: completions("alice", "alice", "alice", "alice", "bob", "bob"),
			validateFunc: func(t *testing.T, balances []MemberBalance, catchups []Catchup) {
				// fair share = 3; alice +1, bob -1
				alice, bob := balances[0], balances[1]
				if alice.Completed != 4 || bob.Completed != 2 {
					t.Errorf("completed = %d/%d, want 4/2", alice.Completed, bob.Completed)
				}
				if math.Abs(alice.Net-1.0) > 0.01 || math.Abs(bob.Net+1.0) > 0.01 {
					t.Errorf("net = %v/%v, want 1/-1", alice.Net, bob.Net)
				}
				if math.Abs(alice.Share-2.0/3.0) > 0.01 {
					t.Errorf("alice share = %v, want 0.667", alice.Share)
				}
				if len(catchups) != 1 || catchups[0] != (Catchup{From: "bob", To: "alice", Chores: 1}) {
					t.Errorf("catchups = %+v", catchups)
				}
			},
		},
		{
			name:        "even split needs no catchup",
			members:     []string{"alice", "bob"},
			completions: completions("alice", "bob"),
			validateFunc: func(t *testing.T, balances []MemberBalance, catchups []Catchup) {
				if len(catchups) != 0 {
					t.Errorf("catchups = %+v, want none", catchups)
				}
			},
		},
		{
			name:        "no completions",
			members:     []string{"alice"},
			completions: nil,
			validateFunc: func(t *testing.T, balances []MemberBalance, catchups []Catchup) {
				if balances[0].Share != 0 || balances[0].Net != 0 {
					t.Errorf("balance = %+v, want zero", balances[0])
				}
			},
		},
		{
			name:        "outsiders are ignored",
			members:     []string{"alice", "bob"},
			completions: completions("carol", "carol", "bob"),
			validateFunc: func(t *testing.T, balances []MemberBalance, catchups []Catchup) {
				if balances[1].Share != 1.0 {
					t.Errorf("bob share = %v, want 1", balances[1].Share)
				}
			},
		},
		{
			name:    "no members should error",
			members: nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balances, catchups, err := ChoreBalance(tt.members, tt.completions)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ChoreBalance() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, balances, catchups)
			}
		})
	}
}

func TestStats(t *testing.T) {
	got := Stats(3, 4)
	if got != (models.ThankYouStats{Sent: 3, Received: 4, Total: 7}) {
		t.Errorf("Stats = %+v", got)
	}
}
