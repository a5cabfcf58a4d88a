package store

import "strings"

// Top-level subtrees of the shared store. These keys are stable across every
// client of the store and must not be renamed.
const (
	UsersRoot          = "users"
	FriendsRoot        = "friends"
	FriendRequestsRoot = "friend_requests"
	MessagesRoot       = "messages"
	NotificationsRoot  = "notifications"
	UserTokensRoot     = "user_tokens"
	CredentialsRoot    = "credentials"
)

// Join concatenates path segments with "/", skipping empty segments.
func Join(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// Split breaks a path into its segments.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// UserPath is the profile record of one user.
func UserPath(uid string) string { return Join(UsersRoot, uid) }

// FriendsPath is the set of friend edges owned by uid, keyed by the other
// user's id.
func FriendsPath(uid string) string { return Join(FriendsRoot, uid) }

// FriendEdgePath is one half of a mirrored friend edge.
func FriendEdgePath(uid, otherUID string) string { return Join(FriendsRoot, uid, otherUID) }

// FriendRequestsPath is the set of pending requests received by toUID, keyed
// by sender id.
func FriendRequestsPath(toUID string) string { return Join(FriendRequestsRoot, toUID) }

// FriendRequestPath is a single pending request from fromUID to toUID.
func FriendRequestPath(toUID, fromUID string) string {
	return Join(FriendRequestsRoot, toUID, fromUID)
}

// MessagePath is a single message record.
func MessagePath(messageID string) string { return Join(MessagesRoot, messageID) }

// NotificationsPath is the notification feed records of one user.
func NotificationsPath(uid string) string { return Join(NotificationsRoot, uid) }

// NotificationPath is a single notification record.
func NotificationPath(uid, notificationID string) string {
	return Join(NotificationsRoot, uid, notificationID)
}

// UserTokenPath is the device push token registered for one user.
func UserTokenPath(uid string) string { return Join(UserTokensRoot, uid) }

// CredentialPath is the credential record for one email. Emails contain "."
// which is not a legal path character, so the key is EncodeEmailKey(email).
func CredentialPath(emailKey string) string { return Join(CredentialsRoot, emailKey) }

// EncodeEmailKey turns an email address into a legal path segment.
func EncodeEmailKey(email string) string {
	return strings.ToLower(strings.ReplaceAll(email, ".", ","))
}
