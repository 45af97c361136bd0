package types

// Keys in the shared persistent store. All execution contexts (engine,
// popup, analysis page) read and write through these.
const (
	KeySession     = "sessionData"
	KeyBlockedURLs = "blockedUrls"
	KeyAllowedURLs = "allowedUrls"
)
