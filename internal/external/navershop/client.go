package navershop

import (
	"github.com/wonny/keyrank/pkg/config"
	"github.com/wonny/keyrank/pkg/httputil"
	"github.com/wonny/keyrank/pkg/logger"
)

// Client handles communication with the Naver Open API shop search
// ⭐ SSOT: 쇼핑 검색 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient   *httputil.Client
	logger       *logger.Logger
	baseURL      string
	clientID     string
	clientSecret string
}

// NewClient creates a new shop search client
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient:   httpClient,
		logger:       log,
		baseURL:      cfg.Naver.BaseURL,
		clientID:     cfg.Naver.ClientID,
		clientSecret: cfg.Naver.ClientSecret,
	}
}

// SearchItem is a single product entry in a search result page
type SearchItem struct {
	Title       string `json:"title"` // HTML 장식 포함 (<b>, &amp; 등)
	Link        string `json:"link"`
	Image       string `json:"image"`
	LPrice      string `json:"lprice"`
	HPrice      string `json:"hprice"`
	MallName    string `json:"mallName"`
	ProductID   string `json:"productId"`
	ProductType string `json:"productType"`
	Brand       string `json:"brand"`
	Maker       string `json:"maker"`
	Category1   string `json:"category1"`
	Category2   string `json:"category2"`
	Category3   string `json:"category3"`
	Category4   string `json:"category4"`
}

// SearchPage is one page of shop search results
type SearchPage struct {
	LastBuildDate string       `json:"lastBuildDate"`
	Total         int          `json:"total"`
	Start         int          `json:"start"`
	Display       int          `json:"display"`
	Items         []SearchItem `json:"items"`
}
