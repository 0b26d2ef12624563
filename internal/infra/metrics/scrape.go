package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(scrapedItemsTotal, scrapeRunsTotal) }

var scrapedItemsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "spider_scraped_items_total",
		Help: "Total ad items fetched from the scrape provider.",
	},
)

var scrapeRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "spider_scrape_runs_total",
		Help: "Scrape provider runs by terminal state.",
	},
	[]string{"state"},
)

func AddScrapedItems(n int) {
	scrapedItemsTotal.Add(float64(n))
}

func IncScrapeRun(state string) {
	scrapeRunsTotal.WithLabelValues(norm(state)).Inc()
}
