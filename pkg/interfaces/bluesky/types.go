package bluesky

// Author identifies the account that created a post.
type Author struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
}

// PostView is a hydrated post as returned by the AppView, with its
// public engagement counters.
type PostView struct {
	URI         string `json:"uri"`
	CID         string `json:"cid"`
	Author      Author `json:"author"`
	IndexedAt   string `json:"indexedAt,omitempty"`
	ReplyCount  int    `json:"replyCount"`
	RepostCount int    `json:"repostCount"`
	LikeCount   int    `json:"likeCount"`
	QuoteCount  int    `json:"quoteCount"`
}

// GetPostsResponse is the app.bsky.feed.getPosts response shape.
type GetPostsResponse struct {
	Posts []PostView `json:"posts"`
}

// FeedItem wraps one post in an author feed.
type FeedItem struct {
	Post PostView `json:"post"`
}

// AuthorFeedResponse is one page of app.bsky.feed.getAuthorFeed. An
// empty Cursor signals the last page.
type AuthorFeedResponse struct {
	Feed   []FeedItem `json:"feed"`
	Cursor string     `json:"cursor,omitempty"`
}

// apiErrorBody is the XRPC error response shape.
type apiErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
