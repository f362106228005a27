package directory

import "time"

type aliasModel struct {
	ID        int64     `gorm:"primaryKey"`
	DomainID  int64     `gorm:"not null"`
	Name      string    `gorm:"type:varchar(255);not null"`
	To        string    `gorm:"column:to;type:varchar(255);not null"`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (aliasModel) TableName() string { return "aliases" }

func (m aliasModel) toAlias() Alias {
	return Alias{
		ID:        m.ID,
		DomainID:  m.DomainID,
		Name:      m.Name,
		To:        m.To,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
