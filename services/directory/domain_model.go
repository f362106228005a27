package directory

import "time"

type domainModel struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (domainModel) TableName() string { return "domains" }

func (m domainModel) toDomain() Domain {
	return Domain{
		ID:        m.ID,
		Name:      m.Name,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type userDomainModel struct {
	UserID   int64 `gorm:"primaryKey"`
	DomainID int64 `gorm:"primaryKey"`
}

func (userDomainModel) TableName() string { return "user_domains" }
