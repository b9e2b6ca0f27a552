package user

import "time"

// User is one registered dashboard account, keyed by mobile number.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Mobile      string    `gorm:"column:mobile;uniqueIndex;size:20" json:"mobile"`
	Password    string    `gorm:"column:password" json:"-"`
	Username    string    `gorm:"column:username" json:"username"`
	KYC         string    `gorm:"column:kyc" json:"kyc"`
	CreditScore int       `gorm:"column:credit_score" json:"credit_score"`
	VIP         bool      `gorm:"column:vip" json:"vip"`
	Balance     float64   `gorm:"column:balance" json:"balance"`
	Invested    float64   `gorm:"column:invested" json:"invested"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
