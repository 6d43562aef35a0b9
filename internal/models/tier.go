package models

type PlanTier struct {
	Name             string `gorm:"primaryKey" json:"name"`
	PerMinute        int    `gorm:"not null" json:"per_minute"`
	PerHour          int    `gorm:"not null" json:"per_hour"`
	PerDay           int    `gorm:"not null" json:"per_day"`
	WarningThreshold int    `gorm:"not null" json:"warning_threshold"`
}

func (PlanTier) TableName() string {
	return "plan_tiers"
}
