package models

// User is an account that owns stories. The password is stored only as a bcrypt hash.
type User struct {
	ID             uint    `json:"id" gorm:"primaryKey"`
	Email          string  `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	HashedPassword string  `json:"-" gorm:"column:hashed_password;type:varchar(255);not null"`
	IsActive       bool    `json:"is_active" gorm:"not null;default:true"`
	Stories        []Story `json:"stories" gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
