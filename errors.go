package watchfeed

import "errors"

// ErrStrategyUnavailable indicates that a whole retrieval strategy cannot
// produce data for a user. The engine reacts by escalating to the next
// strategy in the chain.
var ErrStrategyUnavailable = errors.New("retrieval strategy unavailable")

// ErrUserNotFound indicates the user's watchlist does not exist on the site
// (HTTP 404 on the first page). It is terminal for that user's markup
// retrieval but still allows the syndication fallback to run.
var ErrUserNotFound = errors.New("user not found")
