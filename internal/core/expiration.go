package core

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Period is an aging bucket of the expiration report.
type Period string

const (
	PeriodOverdue Period = "overdue"
	Period30Days  Period = "30-days"
	Period60Days  Period = "60-days"
	Period90Days  Period = "90-days"
	PeriodFuture  Period = "future"
)

// Periods lists the buckets in report order.
var Periods = []Period{PeriodOverdue, Period30Days, Period60Days, Period90Days, PeriodFuture}

// PeriodFor returns the bucket for a days-until-expiry value.
func PeriodFor(days int) Period {
	switch {
	case days < 0:
		return PeriodOverdue
	case days <= 30:
		return Period30Days
	case days <= 60:
		return Period60Days
	case days <= 90:
		return Period90Days
	default:
		return PeriodFuture
	}
}

// Title is the display heading for a period.
func (p Period) Title() string {
	switch p {
	case PeriodOverdue:
		return "Overdue"
	case Period30Days:
		return "Expiring in 30 Days"
	case Period60Days:
		return "Expiring in 31-60 Days"
	case Period90Days:
		return "Expiring in 61-90 Days"
	case PeriodFuture:
		return "Future Expirations"
	default:
		return string(p)
	}
}

// Severity is the badge style for a period.
func (p Period) Severity() string {
	switch p {
	case PeriodOverdue:
		return "destructive"
	case Period30Days:
		return "warning"
	case Period60Days:
		return "secondary"
	default:
		return "outline"
	}
}

// DaysUntilExpiry is the number of days from asOf to end, rounded up.
func DaysUntilExpiry(end, asOf time.Time) int {
	return int(math.Ceil(end.Sub(asOf).Hours() / 24))
}

// ExpiringRecord is a record with its computed days until expiry.
type ExpiringRecord struct {
	MaintenanceRecord
	DaysUntilExpiry int `json:"days_until_expiry"`
}

// ExpirationGroup is one bucket of the report.
type ExpirationGroup struct {
	Period   Period           `json:"period"`
	Title    string           `json:"title"`
	Severity string           `json:"severity"`
	Records  []ExpiringRecord `json:"records"`
}

// ExpirationSummary holds statistics over every bucketed record.
type ExpirationSummary struct {
	TotalRecords     int     `json:"total_records"`
	TotalCost        float64 `json:"total_cost"`
	DistinctAccounts int     `json:"distinct_accounts"`
	Critical         int     `json:"critical"`
}

// ExpirationReport is the bucketed view of a user's active records.
type ExpirationReport struct {
	AsOf    time.Time         `json:"as_of"`
	Groups  []ExpirationGroup `json:"groups"`
	Summary ExpirationSummary `json:"summary"`
	Records []ExpiringRecord  `json:"-"` // unbucketed, input order
}

// Group returns the bucket for p.
func (r ExpirationReport) Group(p Period) ExpirationGroup {
	for _, g := range r.Groups {
		if g.Period == p {
			return g
		}
	}
	return ExpirationGroup{Period: p, Title: p.Title(), Severity: p.Severity()}
}

// BucketRecords partitions records into the five periods, in report order.
// Records without an end date are skipped.
func BucketRecords(records []MaintenanceRecord, asOf time.Time) []ExpirationGroup {
	groups, _ := bucket(records, asOf)
	return groups
}

func bucket(records []MaintenanceRecord, asOf time.Time) ([]ExpirationGroup, []ExpiringRecord) {
	index := make(map[Period]int, len(Periods))
	groups := make([]ExpirationGroup, len(Periods))
	for i, p := range Periods {
		index[p] = i
		groups[i] = ExpirationGroup{Period: p, Title: p.Title(), Severity: p.Severity(), Records: []ExpiringRecord{}}
	}

	all := make([]ExpiringRecord, 0, len(records))
	for _, rec := range records {
		if rec.EndDate == nil {
			continue
		}
		er := ExpiringRecord{MaintenanceRecord: rec, DaysUntilExpiry: DaysUntilExpiry(*rec.EndDate, asOf)}
		i := index[PeriodFor(er.DaysUntilExpiry)]
		groups[i].Records = append(groups[i].Records, er)
		all = append(all, er)
	}
	return groups, all
}

// BuildExpirationReport buckets records and computes the summary.
func BuildExpirationReport(records []MaintenanceRecord, asOf time.Time) ExpirationReport {
	groups, all := bucket(records, asOf)

	total := decimal.Zero
	accounts := make(map[string]struct{})
	for _, rec := range all {
		if rec.Cost != nil {
			total = total.Add(decimal.NewFromFloat(*rec.Cost))
		}
		if label := accountLabel(rec.MaintenanceRecord); label != "" {
			accounts[label] = struct{}{}
		}
	}

	report := ExpirationReport{AsOf: asOf, Groups: groups, Records: all}
	report.Summary = ExpirationSummary{
		TotalRecords:     len(all),
		TotalCost:        total.InexactFloat64(),
		DistinctAccounts: len(accounts),
		Critical:         len(report.Group(PeriodOverdue).Records) + len(report.Group(Period30Days).Records),
	}
	return report
}

// accountLabel prefers the resolved account name over the raw vendor text.
func accountLabel(rec MaintenanceRecord) string {
	if rec.AccountName != nil && *rec.AccountName != "" {
		return *rec.AccountName
	}
	if rec.VendorName != nil {
		return *rec.VendorName
	}
	return ""
}

// Reminders returns the records whose renewal window is open at asOf, soonest
// first. A record is due when 0 <= days until expiry <= its reminder days.
func Reminders(records []MaintenanceRecord, asOf time.Time) []ExpiringRecord {
	var due []ExpiringRecord
	for _, rec := range records {
		if rec.EndDate == nil {
			continue
		}
		days := DaysUntilExpiry(*rec.EndDate, asOf)
		if days < 0 || days > rec.RenewalReminderDays {
			continue
		}
		due = append(due, ExpiringRecord{MaintenanceRecord: rec, DaysUntilExpiry: days})
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].DaysUntilExpiry < due[j].DaysUntilExpiry
	})
	return due
}
