package db

import (
	"encoding/json"
	"time"
)

// Subject is the entity a pipeline run executes on behalf of. It owns its
// window state, same-day briefing cache, and trigger schedule.
type Subject struct {
	SubjectID      int64           `gorm:"column:subject_id;primaryKey;autoIncrement"`
	SubjectUUID    string          `gorm:"column:subject_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Name           string          `gorm:"column:name;type:text;not null;unique"`
	Department     string          `gorm:"column:department;type:text;not null"`
	Keywords       json.RawMessage `gorm:"column:keywords;type:jsonb;not null"`
	LastCheckAt    *time.Time      `gorm:"column:last_check_at;type:timestamptz"`
	LastBriefingAt *time.Time      `gorm:"column:last_briefing_at;type:timestamptz"`
	CreatedAt      time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Subject) TableName() string { return "subjects" }

// ReportedItem is one check-run history row: an event the subject has already
// been told about, kept for the rolling lookback fed to the extractor.
type ReportedItem struct {
	ReportedItemID int64           `gorm:"column:reported_item_id;primaryKey;autoIncrement"`
	SubjectID      int64           `gorm:"column:subject_id;type:bigint;not null;index"`
	CheckedAt      time.Time       `gorm:"column:checked_at;type:timestamptz;not null"`
	TopicCluster   string          `gorm:"column:topic_cluster;type:text;not null"`
	KeyFacts       json.RawMessage `gorm:"column:key_facts;type:jsonb;not null"`
	Summary        string          `gorm:"column:summary;type:text;not null"`
	ArticleURLs    json.RawMessage `gorm:"column:article_urls;type:jsonb;not null"`
	Category       string          `gorm:"column:category;type:text;not null"`
}

func (ReportedItem) TableName() string { return "reported_items" }

// BriefingCache is the per-(subject, calendar day) cache header. Its presence
// with at least one item switches the briefing pipeline into update-run mode.
type BriefingCache struct {
	BriefingCacheID int64     `gorm:"column:briefing_cache_id;primaryKey;autoIncrement"`
	SubjectID       int64     `gorm:"column:subject_id;type:bigint;not null;uniqueIndex:uq_briefing_cache_day"`
	Day             string    `gorm:"column:day;type:text;not null;uniqueIndex:uq_briefing_cache_day"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (BriefingCache) TableName() string { return "briefing_caches" }

// BriefingItem is a persisted same-day briefing entry. Update-runs mutate
// summary/reason/tags in place; ItemUUID stays stable across the day.
type BriefingItem struct {
	BriefingItemID  int64           `gorm:"column:briefing_item_id;primaryKey;autoIncrement"`
	ItemUUID        string          `gorm:"column:item_uuid;type:uuid;not null;unique"`
	BriefingCacheID int64           `gorm:"column:briefing_cache_id;type:bigint;not null;index"`
	Title           string          `gorm:"column:title;type:text;not null"`
	URL             string          `gorm:"column:url;type:text;not null;default:''"`
	Publisher       string          `gorm:"column:publisher;type:text;not null;default:''"`
	Summary         string          `gorm:"column:summary;type:text;not null"`
	Reason          string          `gorm:"column:reason;type:text;not null;default:''"`
	Tags            json.RawMessage `gorm:"column:tags;type:jsonb;not null"`
	Category        string          `gorm:"column:category;type:text;not null"`
	Exclusive       bool            `gorm:"column:exclusive;not null;default:false"`
	SourceCount     int             `gorm:"column:source_count;type:integer;not null;default:1"`
	PublishedAt     *time.Time      `gorm:"column:published_at;type:timestamptz"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (BriefingItem) TableName() string { return "briefing_items" }

// Schedule is one daily wall-clock trigger for a subject and pipeline variant.
type Schedule struct {
	ScheduleID int64     `gorm:"column:schedule_id;primaryKey;autoIncrement"`
	SubjectID  int64     `gorm:"column:subject_id;type:bigint;not null;uniqueIndex:uq_schedule_slot"`
	Variant    string    `gorm:"column:variant;type:text;not null;uniqueIndex:uq_schedule_slot"`
	TimeOfDay  string    `gorm:"column:time_of_day;type:text;not null;uniqueIndex:uq_schedule_slot"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Schedule) TableName() string { return "schedules" }

func autoMigrateModels() []any {
	return []any{
		&Subject{},
		&ReportedItem{},
		&BriefingCache{},
		&BriefingItem{},
		&Schedule{},
	}
}
