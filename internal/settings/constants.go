package settings

// DB config keys and defaults for settings.
const (
	// BatchDepletingPercentKey is the usage percent at which an allocation starts alerting.
	BatchDepletingPercentKey = "ALERT_BATCH_DEPLETING_PERCENT"
	// BatchCriticalPercentKey is the usage percent at which a depleting alert becomes a warning.
	BatchCriticalPercentKey = "ALERT_BATCH_CRITICAL_PERCENT"
	// AlertCacheTTLSecondsKey controls how long alert lists stay cached.
	AlertCacheTTLSecondsKey = "ALERT_CACHE_TTL_SECONDS"
	// LedgerReconcileIntervalSecondsKey controls the background ledger reconcile interval.
	LedgerReconcileIntervalSecondsKey = "LEDGER_RECONCILE_INTERVAL_SECONDS"

	// DefaultBatchDepletingPercent is the fallback depleting threshold.
	DefaultBatchDepletingPercent = 80
	// DefaultBatchCriticalPercent is the fallback warning threshold.
	DefaultBatchCriticalPercent = 95
	// DefaultAlertCacheTTLSeconds is the fallback alert cache TTL.
	DefaultAlertCacheTTLSeconds = 30
	// DefaultLedgerReconcileIntervalSeconds is the fallback reconcile interval; 0 disables.
	DefaultLedgerReconcileIntervalSeconds = 3600
)

// Keys lists every setting the admin API accepts.
var Keys = []string{
	BatchDepletingPercentKey,
	BatchCriticalPercentKey,
	AlertCacheTTLSecondsKey,
	LedgerReconcileIntervalSecondsKey,
}

// IsKnownKey reports whether key is an accepted setting.
func IsKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
