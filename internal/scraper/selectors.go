package scraper

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when scraping breaks

const (
	// Feed selectors
	FeedContainer = `[data-testid="primaryColumn"]`
	TweetArticle  = `article[data-testid="tweet"]`
	TweetText     = `[data-testid="tweetText"]`
	TweetLink     = `a[href*="/status/"]`

	// Engagement controls
	LikeButton   = `[data-testid="like"]`
	UnlikeButton = `[data-testid="unlike"]`
	ReplyButton  = `[data-testid="reply"]`

	// Explore page
	TrendBlock = `[data-testid="trend"]`
)

// Attribute stamped on each visible post by VisiblePosts so later steps can address it.
const PostIndexAttr = "data-engage-post"

const (
	HomeURL     = "https://x.com/home"
	TrendingURL = "https://x.com/explore/tabs/trending"
	// SearchURL takes a query-escaped topic; f=live shows the newest posts.
	SearchURL = "https://x.com/search?q=%s&src=typed_query&f=live"
)
