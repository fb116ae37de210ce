package shared

import (
	"fmt"
	"time"
)

// DepreciationLockKey builds redis keys guarding a tenant's depreciation month.
func DepreciationLockKey(tenantID int64, month time.Time) string {
	return fmt.Sprintf("finance:tenant:%d:depreciation:%s:lock", tenantID, month.Format("2006-01"))
}

// DepreciationSweepLockKey guards the monthly sweep across tenants.
func DepreciationSweepLockKey(month time.Time) string {
	return fmt.Sprintf("finance:depreciation:%s:sweep", month.Format("2006-01"))
}
