package models

// ChainInfo is one chain (L1) tracked by the upstream metrics API.
type ChainInfo struct {
	ChainID     string  `json:"chainId"`
	ChainName   string  `json:"chainName"`
	Description string  `json:"description,omitempty"`
	LogoURI     string  `json:"chainLogoUri,omitempty"`
	SubnetID    string  `json:"subnetId,omitempty"`
	NetworkTok  string  `json:"networkToken,omitempty"`
	TPS         *TPSRef `json:"tps,omitempty"`
	Validators  int     `json:"validatorCount,omitempty"`
}

// TPSRef is the latest TPS reading embedded in a chain record.
type TPSRef struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// TPSPoint is one sample of a chain's TPS history series.
type TPSPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// NetworkTPS is the network-wide TPS summary across all tracked chains.
type NetworkTPS struct {
	TotalTPS    float64 `json:"totalTps"`
	ChainCount  int     `json:"chainCount"`
	LastUpdated int64   `json:"lastUpdated"`
}

// HealthStatus is the upstream API health report.
type HealthStatus struct {
	Status    string `json:"status"`
	Healthy   bool   `json:"healthy"`
	Timestamp int64  `json:"timestamp"`
}

// MessageStats summarizes cross-chain message traffic over a window.
type MessageStats struct {
	TotalMessages int64            `json:"totalMessages"`
	DailyMessages int64            `json:"dailyMessages"`
	SourceChains  map[string]int64 `json:"sourceChains,omitempty"`
	DestChains    map[string]int64 `json:"destChains,omitempty"`
	WindowStart   int64            `json:"windowStart,omitempty"`
	WindowEnd     int64            `json:"windowEnd,omitempty"`
}

// BlogPost is one post of the ecosystem blog feed.
type BlogPost struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug,omitempty"`
	Excerpt     string   `json:"excerpt,omitempty"`
	PublishedAt string   `json:"publishedAt,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// BlogTag is one tag of the blog taxonomy with its post count.
type BlogTag struct {
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Count int    `json:"count,omitempty"`
}
