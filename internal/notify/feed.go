package notify

import (
	"sort"
	"time"

	"friendsync/internal/models"
)

// Bucket labels, in display order.
const (
	BucketToday     = "today"
	BucketYesterday = "yesterday"
	BucketThisWeek  = "this_week"
	BucketOlder     = "older"
)

// Feed is the presentation grouping of a merged entry list. Grouping is
// read-side only; stored records are never mutated by building a Feed.
type Feed struct {
	Buckets []FeedBucket `json:"buckets"`
}

// FeedBucket holds one recency band of the feed.
type FeedBucket struct {
	Label  string      `json:"label"`
	Groups []FeedGroup `json:"groups"`
}

// FeedGroup collapses one sender's entries of one type within a bucket. A
// friend_request group carries a single accept/reject action; a new_message
// group carries the count of its individual entries.
type FeedGroup struct {
	Type         string                `json:"type"`
	FromUserID   string                `json:"fromUserId"`
	FromUsername string                `json:"fromUsername,omitempty"`
	Count        int                   `json:"count"`
	Unread       int                   `json:"unread"`
	Entries      []models.Notification `json:"entries"`
}

// BuildFeed buckets entries by recency relative to now, then groups each
// bucket by sender and type. Entries are expected newest-first, as delivered
// by the aggregator.
func BuildFeed(entries []models.Notification, now time.Time) Feed {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfYesterday := startOfToday.AddDate(0, 0, -1)
	startOfWeek := startOfToday.AddDate(0, 0, -6)

	byBucket := map[string][]models.Notification{}
	for _, e := range entries {
		t := time.UnixMilli(e.Timestamp).In(now.Location())
		var label string
		switch {
		case !t.Before(startOfToday):
			label = BucketToday
		case !t.Before(startOfYesterday):
			label = BucketYesterday
		case !t.Before(startOfWeek):
			label = BucketThisWeek
		default:
			label = BucketOlder
		}
		byBucket[label] = append(byBucket[label], e)
	}

	var feed Feed
	for _, label := range []string{BucketToday, BucketYesterday, BucketThisWeek, BucketOlder} {
		bucketEntries := byBucket[label]
		if len(bucketEntries) == 0 {
			continue
		}
		feed.Buckets = append(feed.Buckets, FeedBucket{
			Label:  label,
			Groups: groupBySender(bucketEntries),
		})
	}
	return feed
}

type groupKey struct {
	fromUserID string
	typ        string
}

func groupBySender(entries []models.Notification) []FeedGroup {
	index := map[groupKey]int{}
	var groups []FeedGroup
	for _, e := range entries {
		key := groupKey{fromUserID: e.FromUserID, typ: e.Type}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, FeedGroup{
				Type:         e.Type,
				FromUserID:   e.FromUserID,
				FromUsername: e.FromUsername,
			})
		}
		groups[i].Count++
		if !e.IsRead {
			groups[i].Unread++
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}

	// Newest group first; entries within a group keep feed order.
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Entries[0].Timestamp > groups[j].Entries[0].Timestamp
	})
	return groups
}
