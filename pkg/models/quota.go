package models

// Tier identifies one independently enforced rate-limit dimension.
type Tier string

const (
	TierNone      Tier = ""
	TierMinute    Tier = "minute"
	TierDayGlobal Tier = "day_global"
	TierDayScope  Tier = "day_scope"
)

// Limits configures the three quota tiers. A value of 0 disables that tier.
type Limits struct {
	PerMinute      int `json:"per_minute" yaml:"per_minute"`
	PerDayGlobal   int `json:"per_day_global" yaml:"per_day_global"`
	PerDayPerScope int `json:"per_day_per_scope" yaml:"per_day_per_scope"`
}

// Remaining reports how many calls each tier will still admit.
// A value of -1 means the tier is disabled.
type Remaining struct {
	Minute    int `json:"minute"`
	DayGlobal int `json:"day_global"`
	DayScope  int `json:"day_scope"`
}
