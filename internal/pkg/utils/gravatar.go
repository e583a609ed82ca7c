package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// DefaultAvatarSize is the edge length in pixels of generated avatars.
const DefaultAvatarSize = 200

// GetGravatarURL generates a Gravatar URL for the given email address.
// Default size is 200px if not specified.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = DefaultAvatarSize
	}
	email = strings.ToLower(strings.TrimSpace(email))
	hash := md5.Sum([]byte(email))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mp", hash, size)
}

// AvatarURL prefers the image synced from the identity provider and falls
// back to Gravatar. Empty when neither an image nor an email is known.
func AvatarURL(imageURL, email string) string {
	if u := strings.TrimSpace(imageURL); u != "" {
		return u
	}
	if strings.TrimSpace(email) == "" {
		return ""
	}
	return GetGravatarURL(email, DefaultAvatarSize)
}
