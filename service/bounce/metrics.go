package bounce

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smsflow/smsflow/model"
)

// Outcome is one delivery result to aggregate
type Outcome struct {
	ContactID  int64
	CampaignID int64
	At         time.Time
	Status     model.MembershipStatus
	Category   model.BounceCategory
}

// Stats ...
type Stats struct {
	Total      int64
	Delivered  int64
	Failed     int64
	ByCategory map[model.BounceCategory]int64
}

func newStats() *Stats {
	return &Stats{ByCategory: map[model.BounceCategory]int64{}}
}

func (s *Stats) add(o Outcome) {
	s.Total++
	switch o.Status {
	case model.MembershipStatusFailed:
		s.Failed++
		category := o.Category
		if category == model.BounceNone {
			category = model.BounceUnknown
		}
		s.ByCategory[category]++
	case model.MembershipStatusDelivered, model.MembershipStatusRepliedPositive,
		model.MembershipStatusRepliedNegative, model.MembershipStatusOptedOut:
		s.Delivered++
	}
}

func rate(n, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(n).Div(decimal.NewFromInt(total)).Round(4)
}

// DeliveryRate is delivered / total, rounded to 4 places
func (s Stats) DeliveryRate() decimal.Decimal {
	return rate(s.Delivered, s.Total)
}

// BounceRate is failed / total, rounded to 4 places
func (s Stats) BounceRate() decimal.Decimal {
	return rate(s.Failed, s.Total)
}

// CategoryRate ...
func (s Stats) CategoryRate(c model.BounceCategory) decimal.Decimal {
	return rate(s.ByCategory[c], s.Total)
}

// Report aggregates outcomes overall, per UTC day, per contact and per campaign
type Report struct {
	Overall    *Stats
	Daily      map[string]*Stats
	ByContact  map[int64]*Stats
	ByCampaign map[int64]*Stats
}

// BuildReport ...
func BuildReport(outcomes []Outcome) Report {
	r := Report{
		Overall:    newStats(),
		Daily:      map[string]*Stats{},
		ByContact:  map[int64]*Stats{},
		ByCampaign: map[int64]*Stats{},
	}

	for _, o := range outcomes {
		r.Overall.add(o)

		day := o.At.UTC().Format("2006-01-02")
		getStats(r.Daily, day).add(o)
		if o.ContactID != 0 {
			getStats(r.ByContact, o.ContactID).add(o)
		}
		if o.CampaignID != 0 {
			getStats(r.ByCampaign, o.CampaignID).add(o)
		}
	}
	return r
}

func getStats[K comparable](m map[K]*Stats, key K) *Stats {
	s, ok := m[key]
	if !ok {
		s = newStats()
		m[key] = s
	}
	return s
}

// SuppressionCandidates returns contacts with at least minHard hard bounces, sorted by id
func (r Report) SuppressionCandidates(minHard int64) []int64 {
	var result []int64
	for contactID, s := range r.ByContact {
		if s.ByCategory[model.BounceHard] >= minHard {
			result = append(result, contactID)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
