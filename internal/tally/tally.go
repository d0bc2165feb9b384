// Package tally computes household fairness figures from chore completions and
// thank-you counts.
package tally

import (
	"errors"
	"sort"

	"github.com/mmynk/choremates/internal/models"
)

// ErrNoMembers is returned when a balance is requested for nobody.
var ErrNoMembers = errors.New("at least one member is required")

// MemberBalance is one member's share of the completed chores.
type MemberBalance struct {
	UserID    string  `json:"user_id"`
	Completed int     `json:"completed"`
	Share     float64 `json:"share"` // Fraction of all completions, 0 when none
	Net       float64 `json:"net"`   // Positive = did more than an even split
}

// Catchup says how many completions From needs to match To.
type Catchup struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Chores int    `json:"chores"`
}

// ChoreBalance counts completions per member and suggests who should catch up.
// Completions by users outside members are ignored.
//
// Algorithm:
// - Each member's fair share is total / len(members)
// - Net = completed - fair share
// - Members behind are matched greedily against members ahead, largest first
func ChoreBalance(members []string, completions []*models.ChoreCompletion) ([]MemberBalance, []Catchup, error) {
	if len(members) == 0 {
		return nil, nil, ErrNoMembers
	}

	counts := make(map[string]int, len(members))
	for _, m := range members {
		counts[m] = 0
	}
	total := 0
	for _, c := range completions {
		if _, ok := counts[c.CompletedBy]; !ok {
			continue
		}
		counts[c.CompletedBy]++
		total++
	}

	fair := float64(total) / float64(len(members))
	balances := make([]MemberBalance, 0, len(members))
	for _, m := range members {
		b := MemberBalance{
			UserID:    m,
			Completed: counts[m],
			Net:       float64(counts[m]) - fair,
		}
		if total > 0 {
			b.Share = float64(counts[m]) / float64(total)
		}
		balances = append(balances, b)
	}

	var ahead, behind []MemberBalance
	for _, b := range balances {
		if b.Net > 0 {
			ahead = append(ahead, b)
		} else if b.Net < 0 {
			behind = append(behind, b)
		}
	}
	sort.SliceStable(ahead, func(i, j int) bool { return ahead[i].Net > ahead[j].Net })
	sort.SliceStable(behind, func(i, j int) bool { return behind[i].Net < behind[j].Net })

	owes := make(map[string]float64, len(behind))
	for _, b := range behind {
		owes[b.UserID] = -b.Net
	}
	owed := make(map[string]float64, len(ahead))
	for _, a := range ahead {
		owed[a.UserID] = a.Net
	}

	var catchups []Catchup
	i, j := 0, 0
	for i < len(behind) && j < len(ahead) {
		from, to := behind[i].UserID, ahead[j].UserID
		amount := min(owes[from], owed[to])

		// Partial chores are not useful advice.
		if n := int(amount + 0.5); n > 0 {
			catchups = append(catchups, Catchup{From: from, To: to, Chores: n})
		}

		owes[from] -= amount
		owed[to] -= amount
		if owes[from] < 0.01 {
			i++
		}
		if owed[to] < 0.01 {
			j++
		}
	}

	return balances, catchups, nil
}

// Stats folds sent and received counts into ThankYouStats.
func Stats(sent, received int) models.ThankYouStats {
	return models.ThankYouStats{Sent: sent, Received: received, Total: sent + received}
}
