package upbit

const (
	DefaultBaseURL = "https://api.upbit.com"

	accountsPath = "/v1/accounts"
	tickerPath   = "/v1/ticker"
	marketsPath  = "/v1/market/all"

	// maxTickerMarkets bounds the markets query parameter of a single ticker request.
	maxTickerMarkets = 100
)
