package store

import "komun/internal/models"

// VisiblePosts drops posts written by blocked users.
func VisiblePosts(posts []models.Post, blocked map[string]struct{}) []models.Post {
	return visible(posts, blocked, func(p models.Post) string { return p.Author.ID })
}

// VisibleMessages drops messages written by blocked users.
func VisibleMessages(msgs []models.Message, blocked map[string]struct{}) []models.Message {
	return visible(msgs, blocked, func(m models.Message) string { return m.Author.ID })
}

// VisibleComments drops comments written by blocked users.
func VisibleComments(comments []models.Comment, blocked map[string]struct{}) []models.Comment {
	return visible(comments, blocked, func(c models.Comment) string { return c.Author.ID })
}

func visible[T any](items []T, blocked map[string]struct{}, author func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, hidden := blocked[author(item)]; !hidden {
			out = append(out, item)
		}
	}
	return out
}
