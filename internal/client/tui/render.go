package tui

import (
	"fmt"
	"strings"
	"time"

	"komun/internal/models"
)

// RelativeTime formats t relative to now the way the feed shows it.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

func field(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func authorLabel(a models.Author) string {
	name := a.FullName()
	if name == "" {
		name = "Unknown"
	}
	if a.ApartmentNumber != "" {
		name += " (" + a.ApartmentNumber + ")"
	}
	return name
}

// Post renders one post with its header, body and counters.
func Post(p models.Post, now time.Time) string {
	var b strings.Builder
	b.WriteString(idStyle.Render("#"+p.ID) + " " + authorStyle.Render(authorLabel(p.Author)) + " " + timeStyle.Render(RelativeTime(p.CreatedAt, now)))
	b.WriteString("\n")
	if p.Title != "" {
		b.WriteString(bodyStyle.Render(titleStyle.Render(p.Title)))
		b.WriteString("\n")
	}
	b.WriteString(bodyStyle.Render(p.Content))
	b.WriteString("\n")
	if p.ImageURL != "" {
		b.WriteString(bodyStyle.Render(hintStyle.Render("[image] " + p.ImageURL)))
		b.WriteString("\n")
	}

	likes := fmt.Sprintf("♥ %d", p.LikesCount)
	if p.LikedByMe {
		likes = likedStyle.Render(likes)
	}
	b.WriteString(bodyStyle.Render(likes + "  " + fmt.Sprintf("💬 %d", p.CommentsCount)))
	return b.String()
}

// Posts renders a feed page.
func Posts(posts []models.Post, now time.Time) string {
	if len(posts) == 0 {
		return hintStyle.Render("No posts yet.")
	}
	parts := make([]string, len(posts))
	for i, p := range posts {
		parts[i] = Post(p, now)
	}
	return strings.Join(parts, "\n\n")
}

// Comments renders a post's comments.
func Comments(comments []models.Comment, now time.Time) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Comments (%d)", len(comments))))
	for _, c := range comments {
		b.WriteString("\n")
		b.WriteString(authorStyle.Render(authorLabel(c.Author)) + " " + timeStyle.Render(RelativeTime(c.CreatedAt, now)))
		b.WriteString("\n")
		b.WriteString(bodyStyle.Render(c.Content))
	}
	return b.String()
}

// Channels renders the channel list with previews and unread counts.
func Channels(channels []models.Channel, now time.Time) string {
	if len(channels) == 0 {
		return hintStyle.Render("No channels.")
	}
	lines := make([]string, 0, len(channels))
	for _, ch := range channels {
		line := idStyle.Render(fmt.Sprintf("%-4s", ch.ID)) + " " + strings.TrimSpace(ch.Icon+" "+titleStyle.Render(ch.Name))
		if ch.UnreadCount > 0 {
			line += " " + unreadStyle.Render(fmt.Sprintf("(%d)", ch.UnreadCount))
		}
		if ch.LastMessagePreview != "" {
			preview := ch.LastMessagePreview
			if ch.LastMessageAt != nil {
				preview += "  " + timeStyle.Render(RelativeTime(*ch.LastMessageAt, now))
			}
			line += "\n     " + hintStyle.Render(preview)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Message renders a chat line. Messages by selfID are highlighted.
func Message(m models.Message, selfID string) string {
	name := authorStyle.Render(m.Author.FullName())
	if m.Author.ID == selfID && selfID != "" {
		name = selfStyle.Render("You")
	}
	return timeStyle.Render(m.CreatedAt.Local().Format("15:04")) + " " + name + " " + valueStyle.Render(m.Content)
}

// Messages renders a message list in display order.
func Messages(msgs []models.Message, selfID string) string {
	if len(msgs) == 0 {
		return hintStyle.Render("No messages yet. Say hello!")
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = Message(m, selfID)
	}
	return strings.Join(lines, "\n")
}

// Residents renders the directory.
func Residents(residents []models.Resident) string {
	if len(residents) == 0 {
		return hintStyle.Render("No residents match.")
	}
	lines := make([]string, len(residents))
	for i, r := range residents {
		apt := r.ApartmentLabel()
		if r.Floor != "" {
			apt += ", floor " + string(r.Floor)
		}
		line := idStyle.Render(fmt.Sprintf("%-4s", r.ID)) + " " + authorStyle.Render(r.FullName())
		if apt != "" {
			line += " " + hintStyle.Render(apt)
		}
		if r.Role != "" && r.Role != "resident" {
			line += " " + pendingStyle.Render(r.Role)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// Blocks renders the blocked users list.
func Blocks(blocks []models.Block) string {
	if len(blocks) == 0 {
		return hintStyle.Render("You have not blocked anyone.")
	}
	lines := make([]string, len(blocks))
	for i, b := range blocks {
		name := b.BlockedUser.FullName()
		if name == "" {
			name = "user " + b.BlockedUserID
		}
		lines[i] = idStyle.Render(b.ID) + " " + authorStyle.Render(name)
	}
	return strings.Join(lines, "\n")
}

// Notifications renders notifications, unread first in the given order.
func Notifications(items []models.Notification, now time.Time) string {
	if len(items) == 0 {
		return hintStyle.Render("No notifications.")
	}
	lines := make([]string, len(items))
	for i, n := range items {
		marker := "  "
		if !n.Read {
			marker = unreadStyle.Render("● ")
		}
		lines[i] = marker + titleStyle.Render(n.Title) + " " + timeStyle.Render(RelativeTime(n.CreatedAt, now)) + "\n  " + valueStyle.Render(n.Body)
	}
	return strings.Join(lines, "\n")
}

// Profile renders the signed-in user and their organization.
func Profile(u models.User, org *models.Organization) string {
	lines := []string{
		field("Name", u.FullName()),
		field("Email", u.Email),
	}
	if apt := u.ApartmentNumber; apt != "" {
		lines = append(lines, field("Apartment", apt))
	}
	if u.Floor != "" {
		lines = append(lines, field("Floor", string(u.Floor)))
	}
	if u.Phone != "" {
		lines = append(lines, field("Phone", u.Phone))
	}
	if u.Bio != "" {
		lines = append(lines, field("Bio", u.Bio))
	}
	if org != nil {
		lines = append(lines, field("Community", org.Name))
	}
	if u.CreatedAt != nil {
		lines = append(lines, field("Member since", u.CreatedAt.Format("January 2006")))
	}
	return strings.Join(lines, "\n")
}

// Settings renders key/value pairs in order.
func Settings(keys []string, get func(string) string) string {
	lines := make([]string, len(keys))
	for i, k := range keys {
		v := get(k)
		if v == "" {
			v = hintStyle.Render("(unset)")
		}
		lines[i] = field(k, v)
	}
	return strings.Join(lines, "\n")
}
