package directory

import "time"

type mailboxModel struct {
	ID            int64               `gorm:"primaryKey"`
	DomainID      int64               `gorm:"not null"`
	Name          string              `gorm:"type:varchar(255);not null"`
	Password      string              `gorm:"type:varchar(255);not null"`
	Active        bool                `gorm:"not null"`
	FooterText    *string             `gorm:"type:text"`
	Domain        domainModel         `gorm:"foreignKey:DomainID"`
	Autoresponder *autoresponderModel `gorm:"foreignKey:MailboxID"`
	CreatedAt     time.Time           `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (mailboxModel) TableName() string { return "mailboxes" }

func (m mailboxModel) toMailbox() Mailbox {
	return Mailbox{
		ID:                  m.ID,
		DomainID:            m.DomainID,
		DomainName:          m.Domain.Name,
		Name:                m.Name,
		PasswordHash:        m.Password,
		Active:              m.Active,
		FooterText:          m.FooterText,
		AutoresponderActive: m.Autoresponder != nil && m.Autoresponder.Active,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

type autoresponderModel struct {
	ID        int64      `gorm:"primaryKey"`
	MailboxID int64      `gorm:"uniqueIndex;not null"`
	Active    bool       `gorm:"not null"`
	Subject   string     `gorm:"type:varchar(255);not null"`
	Body      string     `gorm:"type:text;not null"`
	StartDate *time.Time `gorm:"type:timestamptz"`
	EndDate   *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (autoresponderModel) TableName() string { return "mailbox_autoresponders" }

func (m autoresponderModel) toAutoresponder() Autoresponder {
	return Autoresponder{
		ID:        m.ID,
		MailboxID: m.MailboxID,
		Active:    m.Active,
		Subject:   m.Subject,
		Body:      m.Body,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
