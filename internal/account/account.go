// Package account holds the account record shape and the performance-status
// step registered against account updates.
package account

// LogicalName is the account entity's logical name.
const LogicalName = "account"

// CompanySize is the new_companysize option set.
type CompanySize int

const (
	CompanySizeSmall  CompanySize = 858830000
	CompanySizeMedium CompanySize = 858830001
	CompanySizeLarge  CompanySize = 858830002
)

func (c CompanySize) String() string {
	switch c {
	case CompanySizeSmall:
		return "Small"
	case CompanySizeMedium:
		return "Medium"
	case CompanySizeLarge:
		return "Large"
	}
	return "Unknown"
}

// PerformanceStatus is the new_performancestatus option set.
type PerformanceStatus int

const (
	PerformanceSame      PerformanceStatus = 858830000
	PerformanceImproving PerformanceStatus = 858830001
	PerformanceImproved  PerformanceStatus = 858830002
	PerformanceDeclined  PerformanceStatus = 858830003
)

func (p PerformanceStatus) String() string {
	switch p {
	case PerformanceSame:
		return "Same"
	case PerformanceImproving:
		return "Improving"
	case PerformanceImproved:
		return "Improved"
	case PerformanceDeclined:
		return "Declined"
	}
	return "Unknown"
}

// Account is the typed view of an account record. Pointer fields are left
// nil when the attribute was not sent, so an Account can describe a partial
// update.
type Account struct {
	AccountID               string             `json:"accountid,omitempty"`
	Name                    string             `json:"name,omitempty"`
	CompanySize             *CompanySize       `json:"new_companysize,omitempty"`
	PreviousPerformanceRate *float64           `json:"new_previousperformancerate,omitempty"`
	CurrentPerformanceRate  *float64           `json:"new_currentperformancerate,omitempty"`
	PerformanceStatus       *PerformanceStatus `json:"new_performancestatus,omitempty"`
}

func (a *Account) EntityLogicalName() string { return LogicalName }
func (a *Account) EntityID() string          { return a.AccountID }

// SetEntityID fills AccountID from the snapshot id when the attribute itself
// was not sent.
func (a *Account) SetEntityID(id string) {
	if a.AccountID == "" {
		a.AccountID = id
	}
}
