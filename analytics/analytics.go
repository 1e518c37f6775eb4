package analytics

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	visitorCookie  = "pagesmith_visitor_id"
	visitThrottle  = 30 * time.Minute
	visitorMaxAge  = 60 * 60 * 24 * 365 * 2
	eventTypeVisit = "visit"
)

// PageEvent is one visit of a page, or of a site when PageID is nil.
type PageEvent struct {
	ID        uint      `gorm:"primary_key;autoIncrement"`
	SiteID    uint      `gorm:"not null;index"`
	PageID    *uint     `gorm:"index"`
	VisitorID string    `gorm:"not null;index"`
	Event     string    `gorm:"not null;default:'visit'"`
	IP        string    `gorm:"not null"`
	Language  *string
	Browser   *string
	CreatedAt time.Time `gorm:"index"`
}

type AnalyticsModule struct {
	db      *gorm.DB
	now     func() time.Time
	pending sync.WaitGroup
	cron    *cron.Cron
}

// NewAnalyticsModule returns nil when db is nil. Every method accepts a nil
// module and then does nothing.
func NewAnalyticsModule(db *gorm.DB) *AnalyticsModule {
	if db == nil {
		log.Println("analytics db is nil, analytics will be disabled")
		return nil
	}

	if err := db.AutoMigrate(&PageEvent{}); err != nil {
		log.Printf("error migrating page_events table: %v", err)
		return nil
	}

	log.Println("analytics module initialized successfully")
	return &AnalyticsModule{db: db, now: time.Now}
}

func (a *AnalyticsModule) clock() time.Time {
	return a.now().UTC()
}

// TrackVisit records a visit unless the same visitor saw the same page during
// the last 30 minutes. The insert runs in the background, see Wait.
func (a *AnalyticsModule) TrackVisit(c *gin.Context, siteID uint, pageID *uint) {
	if a == nil || a.db == nil {
		return
	}

	visitorID := a.getOrCreateVisitorID(c)
	now := a.clock()

	query := a.db.Model(&PageEvent{}).Where("visitor_id = ? AND site_id = ? AND created_at > ?",
		visitorID, siteID, now.Add(-visitThrottle))
	if pageID != nil {
		query = query.Where("page_id = ?", *pageID)
	} else {
		query = query.Where("page_id IS NULL")
	}

	var recent int64
	if err := query.Count(&recent).Error; err != nil {
		log.Printf("error checking recent visits: %v", err)
		return
	}
	if recent > 0 {
		return
	}

	event := PageEvent{
		SiteID:    siteID,
		PageID:    pageID,
		VisitorID: visitorID,
		Event:     eventTypeVisit,
		IP:        a.getClientIP(c),
		Language:  a.extractLanguage(c),
		Browser:   a.extractBrowser(c.Request.UserAgent()),
		CreatedAt: now,
	}

	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		if err := a.db.Create(&event).Error; err != nil {
			log.Printf("error saving analytics event: %v", err)
		}
	}()
}

// Wait blocks until every background insert finished.
func (a *AnalyticsModule) Wait() {
	if a == nil {
		return
	}
	a.pending.Wait()
}

func (a *AnalyticsModule) getOrCreateVisitorID(c *gin.Context) string {
	if cookie, err := c.Cookie(visitorCookie); err == nil {
		if _, err := uuid.Parse(cookie); err == nil {
			return cookie
		}
	}

	visitorID := uuid.New().String()
	c.SetCookie(visitorCookie, visitorID, visitorMaxAge, "/", "", false, true)
	return visitorID
}

func (a *AnalyticsModule) getClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		return strings.TrimSpace(ips[0])
	}

	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}

	return c.ClientIP()
}

// extractBrowser maps a User-Agent to a browser family. Order matters, the
// more specific names come first.
func (a *AnalyticsModule) extractBrowser(userAgent string) *string {
	if userAgent == "" {
		return nil
	}

	ua := strings.ToLower(userAgent)
	var browser string

	switch {
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		browser = "Opera"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "msie") || strings.Contains(ua, "trident"):
		browser = "Internet Explorer"
	default:
		browser = "Other"
	}

	return &browser
}

// extractLanguage returns the first language of Accept-Language, e.g. "en-US"
// for "en-US,en;q=0.9".
func (a *AnalyticsModule) extractLanguage(c *gin.Context) *string {
	acceptLang := c.GetHeader("Accept-Language")
	if acceptLang == "" {
		return nil
	}

	lang := strings.TrimSpace(strings.Split(acceptLang, ",")[0])
	lang = strings.Split(lang, ";")[0]
	if lang == "" {
		return nil
	}
	return &lang
}

type DayVisits struct {
	Date  string
	Count int64
}

type PageVisits struct {
	PageID    uint
	PageTitle string `gorm:"-"`
	Count     int64
}

func (a *AnalyticsModule) PageVisitCount(pageID uint) int64 {
	if a == nil || a.db == nil {
		return 0
	}

	var count int64
	a.db.Model(&PageEvent{}).Where("page_id = ?", pageID).Count(&count)
	return count
}

// VisitsByDay returns one entry per day of the last days days, oldest first,
// including days without visits.
func (a *AnalyticsModule) VisitsByDay(siteID uint, days int) []DayVisits {
	if a == nil || a.db == nil || days <= 0 {
		return []DayVisits{}
	}

	now := a.clock()
	startDate := now.AddDate(0, 0, -days)

	var results []DayVisits
	a.db.Model(&PageEvent{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("site_id = ? AND created_at >= ?", siteID, startDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results)

	counts := make(map[string]int64, len(results))
	for _, r := range results {
		counts[r.Date] = r.Count
	}

	dayVisits := make([]DayVisits, days)
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -(days - 1 - i)).Format("2006-01-02")
		dayVisits[i] = DayVisits{Date: date, Count: counts[date]}
	}
	return dayVisits
}

// TopPages returns the limit most visited pages of the last days days.
// PageTitle is left for the caller to fill.
func (a *AnalyticsModule) TopPages(siteID uint, days int, limit int) []PageVisits {
	if a == nil || a.db == nil {
		return []PageVisits{}
	}

	startDate := a.clock().AddDate(0, 0, -days)

	var results []PageVisits
	a.db.Model(&PageEvent{}).
		Select("page_id as page_id, COUNT(*) as count").
		Where("site_id = ? AND page_id IS NOT NULL AND created_at >= ?", siteID, startDate).
		Group("page_id").
		Order("count DESC").
		Limit(limit).
		Scan(&results)

	return results
}

// Prune deletes the events created before t.
func (a *AnalyticsModule) Prune(before time.Time) (int64, error) {
	if a == nil || a.db == nil {
		return 0, nil
	}
	result := a.db.Where("created_at < ?", before.UTC()).Delete(&PageEvent{})
	return result.RowsAffected, result.Error
}

// StartRetention prunes events older than maxAge on the cron schedule,
// e.g. "@daily" or "0 3 * * *".
func (a *AnalyticsModule) StartRetention(schedule string, maxAge time.Duration) error {
	if a == nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		removed, err := a.Prune(a.clock().Add(-maxAge))
		if err != nil {
			log.Printf("error pruning analytics events: %v", err)
			return
		}
		log.Printf("pruned %d analytics events", removed)
	})
	if err != nil {
		return err
	}

	c.Start()
	a.cron = c
	log.Printf("analytics retention scheduled (%s, max age %s)", schedule, maxAge)
	return nil
}

func (a *AnalyticsModule) StopRetention() {
	if a == nil || a.cron == nil {
		return
	}
	<-a.cron.Stop().Done()
}
