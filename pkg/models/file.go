package models

// File is one stored upload. BatchNumber and PrivateContent are reserved
// columns that no handler writes.
type File struct {
	ID             int64   `gorm:"primaryKey;autoIncrement" msgpack:"id"`
	FileName       string  `gorm:"type:text;not null;index" msgpack:"file_name"`
	Title          string  `gorm:"type:text;not null" msgpack:"title"`
	Description    *string `gorm:"type:text" msgpack:"description"`
	BatchNumber    *int64  `gorm:"type:integer" msgpack:"batch_number"`
	PublicAccess   bool    `gorm:"not null" msgpack:"public_access"`
	PrivateContent bool    `gorm:"not null" msgpack:"private_content"`
	URL            string  `gorm:"column:url;type:text;not null" msgpack:"url"`
}

func (File) TableName() string {
	return "files"
}
