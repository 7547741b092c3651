package models

// InputRecord is one parsed row of the uploaded URL sheet
type InputRecord struct {
	URL                string   `json:"url"`
	Label              string   `json:"label,omitempty"`
	Brand              string   `json:"brand,omitempty"`
	PriceFloor         *float64 `json:"price_floor,omitempty"`
	TargetRating       *float64 `json:"target_rating,omitempty"`
	TargetReviewsCount *int     `json:"target_reviews_count,omitempty"`
}

// TargetMetrics describes the product being analyzed
type TargetMetrics struct {
	ASIN                string  `json:"asin"`
	ProductName         string  `json:"product_name"`
	Brand               string  `json:"brand"`
	Price               float64 `json:"price"`
	EstDailyImpressions int     `json:"est_daily_impressions"`
	EstDailyClicks      int     `json:"est_daily_clicks"`
	RatingsCount        int     `json:"ratings_count"`
	AvgRating           float64 `json:"avg_rating"`
	KeywordsTop4        int     `json:"keywords_top4"`
	KeywordsPage1       int     `json:"keywords_page1"`
}

// CompetitorMetrics describes one rival product returned for a target
type CompetitorMetrics struct {
	Rank           int     `json:"rank"`
	CompASIN       string  `json:"comp_asin"`
	ProductName    string  `json:"product_name"`
	BrandName      string  `json:"brand_name"`
	Price          float64 `json:"price"`
	Rating         float64 `json:"rating"`
	RatingsCount   int     `json:"ratings_count"`
	KeywordsTop4   int     `json:"keywords_top4"`
	KeywordsPage1  int     `json:"keywords_page1"`
	EstDailyClicks int     `json:"est_daily_clicks"`
}

// CompetitorAverage is the element-wise mean of a competitor set
type CompetitorAverage struct {
	Price          float64 `json:"price"`
	Rating         float64 `json:"rating"`
	RatingsCount   float64 `json:"ratings_count"`
	KeywordsTop4   float64 `json:"keywords_top4"`
	KeywordsPage1  float64 `json:"keywords_page1"`
	EstDailyClicks float64 `json:"est_daily_clicks"`
}

// MetricsBundle is what a metrics source returns for one identifier
type MetricsBundle struct {
	Target      TargetMetrics       `json:"target"`
	Competitors []CompetitorMetrics `json:"competitors"`
}

// PricePosition classifies the target price against the competitor mean
type PricePosition string

const (
	PriceAbove   PricePosition = "above"
	PriceAligned PricePosition = "aligned"
	PriceBelow   PricePosition = "below"
)

// Effort is the rough cost tier of an action
type Effort string

const (
	EffortLow  Effort = "Low"
	EffortMed  Effort = "Med"
	EffortHigh Effort = "High"
)

// Action is an advisory recommendation derived from the gaps
type Action struct {
	Title  string   `json:"title"`
	Why    string   `json:"why"`
	Impact []string `json:"impact"`
	Effort Effort   `json:"effort"`
	Target string   `json:"target"`
}

// Insights holds the gap indicators and priority score for one target
type Insights struct {
	KW4Gap         float64       `json:"kw4_gap"`
	KWP1Gap        float64       `json:"kwp1_gap"`
	RatingGap      float64       `json:"rating_gap"`
	ReviewsDeficit int           `json:"reviews_deficit"`
	PricePosition  PricePosition `json:"price_position"`
	ClicksShare    float64       `json:"clicks_share"`
	PriorityScore  float64       `json:"priority_score"`
	Actions        []Action      `json:"actions"`
}

// ProcessedAsinData is the per-identifier output of a run
type ProcessedAsinData struct {
	ASIN        string              `json:"asin"`
	Label       string              `json:"label"`
	Target      TargetMetrics       `json:"target"`
	CompAvg     CompetitorAverage   `json:"comp_avg"`
	Competitors []CompetitorMetrics `json:"competitors"`
	Insights    Insights            `json:"insights"`
	Input       InputRecord         `json:"input"`
}

// PortfolioSummary aggregates all processed identifiers
type PortfolioSummary struct {
	ASINsProcessed   int     `json:"asinsProcessed"`
	AvgRating        float64 `json:"avgRating"`
	AvgPrice         float64 `json:"avgPrice"`
	TotalEstClicks   int     `json:"totalEstClicks"`
	AvgPriorityScore float64 `json:"avgPriorityScore"`
}

// Downloads lists where presentation layers serve the exported artifacts
type Downloads struct {
	HTMLReportURL string `json:"htmlReportUrl"`
	ZipURL        string `json:"zipUrl"`
	CSVBundleURL  string `json:"csvBundleUrl"`
}

// RunResult is the complete output of one pipeline invocation
type RunResult struct {
	FileName    string              `json:"fileName"`
	RunID       string              `json:"runId"`
	GeneratedAt string              `json:"generatedAt"`
	Portfolio   PortfolioSummary    `json:"portfolio"`
	ASINs       []ProcessedAsinData `json:"asins"`
	Downloads   Downloads           `json:"downloads"`
}
