package directory

import (
	"time"

	"mailadmin/services/auth"
)

type userModel struct {
	ID        int64         `gorm:"primaryKey"`
	Email     string        `gorm:"type:varchar(255);uniqueIndex;not null"`
	Password  string        `gorm:"type:varchar(255);not null"`
	Firstname string        `gorm:"type:varchar(100);not null"`
	Lastname  string        `gorm:"type:varchar(100);not null"`
	Role      string        `gorm:"type:varchar(20);not null;default:user"`
	Active    bool          `gorm:"not null"`
	Domains   []domainModel `gorm:"many2many:user_domains;joinForeignKey:UserID;joinReferences:DomainID"`
	CreatedAt time.Time     `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time     `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (userModel) TableName() string { return "users" }

func (m userModel) toUser() User {
	ids := make([]int64, 0, len(m.Domains))
	for _, d := range m.Domains {
		ids = append(ids, d.ID)
	}
	return User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.Password,
		FirstName:    m.Firstname,
		LastName:     m.Lastname,
		Role:         auth.Role(m.Role),
		Active:       m.Active,
		DomainIDs:    ids,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func newUserModel(u User) userModel {
	return userModel{
		ID:        u.ID,
		Email:     u.Email,
		Password:  u.PasswordHash,
		Firstname: u.FirstName,
		Lastname:  u.LastName,
		Role:      string(u.Role),
		Active:    u.Active,
	}
}
