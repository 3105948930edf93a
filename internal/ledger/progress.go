package ledger

import (
	"math"
	"sort"
	"time"

	"github.com/caveau-digitale/caveaud/internal/types"
)

// Summary is the dashboard header: total saved across all vaults, how
// many vaults exist, and the soonest upcoming unlock.
type Summary struct {
	TotalSaved float64     `json:"totalSaved"`
	VaultCount int         `json:"vaultCount"`
	NextUnlock *NextUnlock `json:"nextUnlock,omitempty"`
}

type NextUnlock struct {
	VaultID    string    `json:"vaultId"`
	Icon       string    `json:"icon"`
	Name       string    `json:"name"`
	UnlockDate time.Time `json:"unlockDate"`
	DaysLeft   int       `json:"daysLeft"`
	Unlocked   bool      `json:"unlocked"`
}

// HistoryPoint is one step of the cumulative savings line across all
// vaults, ordered by deposit date.
type HistoryPoint struct {
	Date  time.Time `json:"date"`
	Total float64   `json:"total"`
}

// ProgressSeries is the per-vault actual-vs-ideal monthly accumulation
// the client charts. Ideal is only present when the vault has both a
// target and an unlock date to pace against.
type ProgressSeries struct {
	Months []string  `json:"months"` // YYYY-MM labels
	Actual []float64 `json:"actual"`
	Ideal  []float64 `json:"ideal,omitempty"`
}

// Summarize builds the dashboard header at the given time.
func (l *Ledger) Summarize(now time.Time) Summary {
	s := Summary{VaultCount: len(l.vaults)}
	for i := range l.vaults {
		s.TotalSaved = round2(s.TotalSaved + TotalDeposited(&l.vaults[i]))
	}

	var next *types.Vault
	for i := range l.vaults {
		v := &l.vaults[i]
		if v.UnlockDate == nil {
			continue
		}
		if next == nil || v.UnlockDate.Before(*next.UnlockDate) {
			next = v
		}
	}
	if next != nil {
		days := daysUntil(*next.UnlockDate, now)
		s.NextUnlock = &NextUnlock{
			VaultID:    next.ID,
			Icon:       next.Icon,
			Name:       next.Name,
			UnlockDate: *next.UnlockDate,
			DaysLeft:   days,
			Unlocked:   days <= 0,
		}
	}
	return s
}

// History flattens every deposit across all vaults into a cumulative
// series ordered by date.
func (l *Ledger) History() []HistoryPoint {
	var txs []types.Transaction
	for i := range l.vaults {
		txs = append(txs, l.vaults[i].Transactions...)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	points := make([]HistoryPoint, 0, len(txs))
	var running float64
	for _, tx := range txs {
		running = round2(running + tx.Amount)
		points = append(points, HistoryPoint{Date: tx.Date, Total: running})
	}
	return points
}

// Progress builds the monthly actual-vs-ideal series for one vault, from
// its creation month through the earlier of its unlock date and now.
func (l *Ledger) Progress(vaultID string, now time.Time) (*ProgressSeries, error) {
	v, err := l.Get(vaultID)
	if err != nil {
		return nil, err
	}

	end := now
	if v.UnlockDate != nil && v.UnlockDate.Before(now) {
		end = *v.UnlockDate
	}

	months := monthsBetween(v.CreatedAt, end, now)
	series := &ProgressSeries{Months: months}

	byMonth := map[string]float64{}
	for _, tx := range v.Transactions {
		m := tx.Date.Format("2006-01")
		byMonth[m] += tx.Amount
	}
	var running float64
	for _, m := range months {
		running = round2(running + byMonth[m])
		series.Actual = append(series.Actual, running)
	}

	if v.Target != nil && v.UnlockDate != nil {
		totalMonths := math.Max(1, math.Round(v.UnlockDate.Sub(v.CreatedAt).Hours()/(24*30)))
		perMonth := *v.Target / totalMonths
		for i := range months {
			series.Ideal = append(series.Ideal, round2(float64(i+1)*perMonth))
		}
	}
	return series, nil
}

func monthsBetween(start, end, now time.Time) []string {
	var months []string
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) && !cur.After(now) {
		months = append(months, cur.Format("2006-01"))
		cur = cur.AddDate(0, 1, 0)
	}
	nowM := now.Format("2006-01")
	if len(months) == 0 || months[len(months)-1] != nowM {
		months = append(months, nowM)
	}
	return months
}

func daysUntil(date, now time.Time) int {
	return int(math.Ceil(date.Sub(now).Hours() / 24))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
