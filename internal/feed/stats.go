package feed

// statsTable holds the per-post denormalized counters. Rows are created
// lazily on first reference and live for the session; fetched values
// overwrite stored ones because origin data is authoritative over time.
type statsTable struct {
	byPost map[PostID]PostStats
}

func newStatsTable() statsTable {
	return statsTable{byPost: make(map[PostID]PostStats)}
}

func (table *statsTable) get(postID PostID) (PostStats, bool) {
	stats, ok := table.byPost[postID]
	return stats, ok
}

func (table *statsTable) merge(incoming map[PostID]PostStats) {
	for postID, stats := range incoming {
		table.byPost[postID] = stats
	}
}

func (table *statsTable) set(postID PostID, stats PostStats) {
	table.byPost[postID] = stats
}

func (table *statsTable) adjustLikes(postID PostID, delta int) {
	stats := table.byPost[postID]
	stats.Likes = clampCounter(stats.Likes + delta)
	table.byPost[postID] = stats
}

func (table *statsTable) adjustShares(postID PostID, delta int) {
	stats := table.byPost[postID]
	stats.Shares = clampCounter(stats.Shares + delta)
	table.byPost[postID] = stats
}

func (table *statsTable) adjustComments(postID PostID, delta int) {
	stats := table.byPost[postID]
	stats.Comments = clampCounter(stats.Comments + delta)
	table.byPost[postID] = stats
}

func (table *statsTable) reset() {
	table.byPost = make(map[PostID]PostStats)
}

// clampCounter keeps a decremented counter from going below zero.
func clampCounter(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
