package admin

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DayVisitChart is one bar of the daily visits chart. Percentage is relative
// to the busiest day.
type DayVisitChart struct {
	Date       string
	Count      int64
	Percentage float64
}

type PageVisitChart struct {
	PageID     uint
	PageTitle  string
	Count      int64
	Percentage float64
}

func percentage(count, max int64) float64 {
	if max <= 0 {
		return 0
	}
	return float64(count) / float64(max) * 100
}

func (a *AdminModule) visits(c *gin.Context) {
	site, ok := a.loadSite(c)
	if !ok {
		return
	}

	if a.analytics == nil {
		a.render(c, http.StatusOK, "admin_visits.html", gin.H{
			"site":             site,
			"analyticsEnabled": false,
		})
		return
	}

	visitsByDay := a.analytics.VisitsByDay(site.ID, 15)
	topPages := a.analytics.TopPages(site.ID, 30, 10)

	for i := range topPages {
		page, err := a.pages.ByID(c.Request.Context(), topPages[i].PageID)
		if err != nil {
			log.Printf("error loading page %d: %v", topPages[i].PageID, err)
		}
		if page != nil {
			topPages[i].PageTitle = page.Title
		} else {
			topPages[i].PageTitle = "Removed page"
		}
	}

	maxPerDay := int64(1)
	for _, day := range visitsByDay {
		if day.Count > maxPerDay {
			maxPerDay = day.Count
		}
	}
	maxPerPage := int64(1)
	for _, p := range topPages {
		if p.Count > maxPerPage {
			maxPerPage = p.Count
		}
	}

	dayCharts := make([]DayVisitChart, len(visitsByDay))
	for i, day := range visitsByDay {
		dayCharts[i] = DayVisitChart{Date: day.Date, Count: day.Count, Percentage: percentage(day.Count, maxPerDay)}
	}

	pageCharts := make([]PageVisitChart, len(topPages))
	for i, p := range topPages {
		pageCharts[i] = PageVisitChart{
			PageID:     p.PageID,
			PageTitle:  p.PageTitle,
			Count:      p.Count,
			Percentage: percentage(p.Count, maxPerPage),
		}
	}

	a.render(c, http.StatusOK, "admin_visits.html", gin.H{
		"site":             site,
		"analyticsEnabled": true,
		"visitsByDay":      dayCharts,
		"topPages":         pageCharts,
	})
}
