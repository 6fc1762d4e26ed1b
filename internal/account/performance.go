package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bjaus/plugin"
)

// rateScale is the number of fractional digits kept when dividing rates.
const rateScale = 28

var (
	mediumThreshold = decimal.New(1, -1)
	largeThreshold  = decimal.New(2, -1)
)

// Key is where PerformanceStep is registered.
var Key = plugin.On(plugin.PostOperation, plugin.MessageUpdate, LogicalName)

// PerformanceHandler is the manifest name of PerformanceStep.
const PerformanceHandler = "account.performance_status"

// Register adds the account steps to reg.
func Register(reg *plugin.Registry) {
	reg.Register(Key, PerformanceStep{})
}

// Handlers returns the account steps by manifest name.
func Handlers() map[string]plugin.Handler {
	return map[string]plugin.Handler{
		PerformanceHandler: PerformanceStep{},
	}
}

// Classify maps a rate of change to a status. The second result is false
// when no threshold applies to the company size, in which case nothing
// should be written.
//
// Thresholds: any decline is Declined and no change is Same; growth counts
// as Improving for small companies, and as Improved above 10% for medium and
// above 20% for large companies.
func Classify(rate decimal.Decimal, size CompanySize) (PerformanceStatus, bool) {
	switch {
	case rate.IsZero():
		return PerformanceSame, true
	case rate.IsNegative():
		return PerformanceDeclined, true
	case size == CompanySizeSmall:
		return PerformanceImproving, true
	case size == CompanySizeMedium && rate.GreaterThan(mediumThreshold):
		return PerformanceImproved, true
	case size == CompanySizeLarge && rate.GreaterThan(largeThreshold):
		return PerformanceImproved, true
	}
	return 0, false
}

// RateChange returns (current - previous) / previous in decimal arithmetic,
// so rates such as 1.5 and 1.8 give exactly 0.2. previous must not be zero.
func RateChange(previous, current float64) decimal.Decimal {
	prev, cur := decimal.NewFromFloat(previous), decimal.NewFromFloat(current)
	return cur.Sub(prev).DivRound(prev, rateScale)
}

// PerformanceStep derives new_performancestatus from the change between the
// previous and current performance rates after an account update.
type PerformanceStep struct{}

func (PerformanceStep) Name() string { return "AccountPerformanceStatus" }

// Handle implements plugin.Handler.
func (PerformanceStep) Handle(ctx context.Context, inv *plugin.Invocation) error {
	target, err := inv.RequireTarget()
	if err != nil {
		return err
	}
	if !strings.EqualFold(target.LogicalName, LogicalName) || !strings.EqualFold(inv.MessageName(), plugin.MessageUpdate) {
		return nil
	}
	inv.Tracef("AccountPerformanceStatus target: %s", target.ID)

	acct, err := plugin.PostImage[Account](inv)
	if err != nil {
		return fmt.Errorf("read account post image: %w", err)
	}
	if acct == nil {
		inv.Trace("AccountPerformanceStatus skipped: no post image")
		return nil
	}
	inv.Tracef("AccountPerformanceStatus account: %s", acct.Name)

	if acct.PreviousPerformanceRate == nil || *acct.PreviousPerformanceRate == 0 {
		inv.Trace("AccountPerformanceStatus skipped: previous performance rate is zero")
		return nil
	}
	if acct.CurrentPerformanceRate == nil {
		inv.Trace("AccountPerformanceStatus skipped: current performance rate is not set")
		return nil
	}

	rate := RateChange(*acct.PreviousPerformanceRate, *acct.CurrentPerformanceRate)

	var size CompanySize
	if acct.CompanySize != nil {
		size = *acct.CompanySize
	}
	status, ok := Classify(rate, size)
	if !ok {
		inv.Tracef("AccountPerformanceStatus no updates: rate change %s for %s company", rate, size)
		return nil
	}

	id := acct.AccountID
	if id == "" {
		id = target.ID
	}
	rec, err := plugin.ToRecord(&Account{AccountID: id, PerformanceStatus: &status})
	if err != nil {
		return err
	}
	inv.Tracef("AccountPerformanceStatus updating status: %s", status)
	return inv.Service().Update(ctx, rec)
}
