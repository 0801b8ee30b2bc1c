package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Record status values shared by advertisements, stores, menu buttons and pin messages.
const (
	StatusInactive = 0
	StatusActive   = 1
)

// Menu button types.
const (
	MenuButtonTypeStore  = "store"
	MenuButtonTypeAction = "action"
)

// Advertisement is a promotional message broadcast to every active chat.
// StartDate and EndDate bound the delivery window; FrequencyCapMinutes is the
// delay between successive deliveries (0 means deliver once).
type Advertisement struct {
	ID                  int64      `db:"id"                    json:"id"`
	Title               string     `db:"title"                 json:"title"`
	Description         string     `db:"description"           json:"description"`
	MediaURL            string     `db:"media_url"             json:"media_url"`
	StoreID             *int64     `db:"store_id"              json:"store_id"`
	Status              int        `db:"status"                json:"status"`
	StartDate           *time.Time `db:"start_date"            json:"start_date"`
	EndDate             *time.Time `db:"end_date"              json:"end_date"`
	FrequencyCapMinutes int        `db:"frequency_cap_minutes" json:"frequency_cap_minutes"`
	LastDeliveredAt     *time.Time `db:"last_delivered_at"     json:"last_delivered_at"`
	CreatedAt           time.Time  `db:"created_at"            json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"            json:"updated_at"`
}

// IsActive reports whether the advertisement status is active.
func (a *Advertisement) IsActive() bool {
	return a.Status == StatusActive
}

// Delivered reports whether the advertisement has fanned out at least once.
func (a *Advertisement) Delivered() bool {
	return a.LastDeliveredAt != nil
}

// Expired reports whether the end date has passed at t.
func (a *Advertisement) Expired(t time.Time) bool {
	return a.EndDate != nil && !t.Before(*a.EndDate)
}

// InWindow reports whether t falls inside [StartDate, EndDate).
func (a *Advertisement) InWindow(t time.Time) bool {
	if a.StartDate != nil && t.Before(*a.StartDate) {
		return false
	}
	return !a.Expired(t)
}

// Link is a labelled URL, used for store social buttons.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Links is stored as a JSON array in a TEXT column.
type Links []Link

// Scan implements sql.Scanner.
func (l *Links) Scan(src any) error {
	return scanJSON(src, l)
}

// Value implements driver.Valuer.
func (l Links) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return valueJSON(l)
}

// StringList is stored as a JSON array in a TEXT column.
type StringList []string

// Scan implements sql.Scanner.
func (s *StringList) Scan(src any) error {
	return scanJSON(src, s)
}

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return valueJSON(s)
}

func scanJSON(src any, dst any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode JSON column: %w", err)
	}
	return nil
}

func valueJSON(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON column: %w", err)
	}
	return string(b), nil
}

// Store is a shop listed under a store-type menu button.
type Store struct {
	ID           int64      `db:"id"             json:"id"`
	Name         string     `db:"name"           json:"name"`
	Address      string     `db:"address"        json:"address"`
	Hours        string     `db:"hours"          json:"hours"`
	Status       int        `db:"status"         json:"status"`
	Recommend    bool       `db:"recommend"      json:"recommend"`
	MenuButtonID *int64     `db:"menu_button_id" json:"menu_button_id"`
	SubBtns      Links      `db:"sub_btns"       json:"sub_btns"`
	MenuURLs     StringList `db:"menu_urls"      json:"menu_urls"`
	SortOrder    int        `db:"sort_order"     json:"sort_order"`
	CreatedAt    time.Time  `db:"created_at"     json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"     json:"updated_at"`
}

// MenuButton is a node of the bot menu tree.
type MenuButton struct {
	ID        int64     `db:"id"         json:"id"`
	ParentID  *int64    `db:"parent_id"  json:"parent_id"`
	Name      string    `db:"name"       json:"name"`
	Type      string    `db:"type"       json:"type"`
	Action    string    `db:"action"     json:"action"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	Status    int       `db:"status"     json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Children []*MenuButton `db:"-" json:"children,omitempty"`
}

// PinMessage is an HTML message pinned in every chat on broadcast.
type PinMessage struct {
	ID        int64     `db:"id"         json:"id"`
	Content   string    `db:"content"    json:"content"`
	MediaURL  string    `db:"media_url"  json:"media_url"`
	Status    int       `db:"status"     json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Chat is a Telegram chat that has started the bot.
type Chat struct {
	ID        int64     `db:"id"         json:"id"`
	ChatID    int64     `db:"chat_id"    json:"chat_id"`
	Name      string    `db:"name"       json:"name"`
	Active    bool      `db:"active"     json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Job is a row of the persistent queue. Times are unix seconds.
type Job struct {
	ID              int64  `db:"id"               json:"id"`
	Queue           string `db:"queue"            json:"queue"`
	Kind            string `db:"kind"             json:"kind"`
	AdvertisementID *int64 `db:"advertisement_id" json:"advertisement_id"`
	Payload         string `db:"payload"          json:"payload"`
	Attempts        int    `db:"attempts"         json:"attempts"`
	ReservedAt      *int64 `db:"reserved_at"      json:"reserved_at"`
	AvailableAt     int64  `db:"available_at"     json:"available_at"`
	CreatedAt       int64  `db:"created_at"       json:"created_at"`
}

// FailedJob is a job that exhausted its attempts or failed permanently.
type FailedJob struct {
	ID              int64  `db:"id"               json:"id"`
	Queue           string `db:"queue"            json:"queue"`
	Kind            string `db:"kind"             json:"kind"`
	AdvertisementID *int64 `db:"advertisement_id" json:"advertisement_id"`
	Payload         string `db:"payload"          json:"payload"`
	Error           string `db:"error"            json:"error"`
	FailedAt        int64  `db:"failed_at"        json:"failed_at"`
}

// DeliveryLog records the outcome of one advertisement batch.
type DeliveryLog struct {
	ID              int64     `db:"id"               json:"id"`
	AdvertisementID int64     `db:"advertisement_id" json:"advertisement_id"`
	JobID           int64     `db:"job_id"           json:"job_id"`
	Sent            int       `db:"sent"             json:"sent"`
	Failed          int       `db:"failed"           json:"failed"`
	Blocked         int       `db:"blocked"          json:"blocked"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
}

// DeliveryStats aggregates the delivery logs of one advertisement.
type DeliveryStats struct {
	Batches int `db:"batches" json:"batches"`
	Sent    int `db:"sent"    json:"sent"`
	Failed  int `db:"failed"  json:"failed"`
	Blocked int `db:"blocked" json:"blocked"`
}

// Stats is the overview shown by /stats.
type Stats struct {
	TotalChats  int `db:"total_chats"  json:"total_chats"`
	ActiveChats int `db:"active_chats" json:"active_chats"`
	TotalAds    int `db:"total_ads"    json:"total_ads"`
	ActiveAds   int `db:"active_ads"   json:"active_ads"`
	PendingJobs int `db:"pending_jobs" json:"pending_jobs"`
	FailedJobs  int `db:"failed_jobs"  json:"failed_jobs"`
}

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	} else if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
