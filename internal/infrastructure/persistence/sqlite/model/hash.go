package model

// HashRow is the shared column set of both hash tables. Reads and writes go
// through it with an explicit table name; DomainHash and URLHash exist so
// each table gets its own migration and index names.
type HashRow struct {
	Hash  string `gorm:"column:hash;type:text;primaryKey"`
	Type  int    `gorm:"column:type;not null"`
	Level int    `gorm:"column:level;not null"`
}

type DomainHash struct {
	Hash  string `gorm:"column:hash;type:text;primaryKey"`
	Type  int    `gorm:"column:type;not null;index"`
	Level int    `gorm:"column:level;not null;index"`
}

func (DomainHash) TableName() string {
	return "domain_hashes"
}

type URLHash struct {
	Hash  string `gorm:"column:hash;type:text;primaryKey"`
	Type  int    `gorm:"column:type;not null;index"`
	Level int    `gorm:"column:level;not null;index"`
}

func (URLHash) TableName() string {
	return "url_hashes"
}
