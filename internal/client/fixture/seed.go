package fixture

import (
	"time"

	"komun/internal/models"
)

// Demo account accepted by the fixture source.
const (
	DemoEmail      = "maya@komun.app"
	DemoPassword   = "komun-demo"
	DemoInvitation = "MAPLE-2025"
)

var demoOrganization = models.Organization{ID: "org-1", Name: "Maple Court Residences"}

type seedResident struct {
	id, first, last, apt, floor, role string
}

var seedResidents = []seedResident{
	{"1", "Maya", "Thompson", "4B", "4", "resident"},
	{"2", "Daniel", "Okafor", "2A", "2", "council"},
	{"3", "Priya", "Raman", "3C", "3", "resident"},
	{"4", "Lucas", "Meyer", "5A", "5", "resident"},
	{"5", "Hannah", "Park", "1B", "1", "resident"},
	{"6", "Omar", "Haddad", "6A", "6", "resident"},
	{"7", "Grace", "Liu", "2B", "2", "council"},
	{"8", "Tom", "Becker", "4A", "4", "resident"},
	{"9", "Sofia", "Rossi", "3A", "3", "resident"},
	{"10", "Ethan", "Brooks", "5B", "5", "resident"},
	{"11", "Nora", "Jensen", "1A", "1", "resident"},
	{"12", "Leo", "Martins", "6B", "6", "resident"},
}

func seedCommunity(now time.Time) *community {
	c := &community{
		comments: make(map[string][]models.Comment),
		messages: make(map[string][]models.Message),
		accounts: make(map[string]account),
	}

	for _, r := range seedResidents {
		c.residents = append(c.residents, models.Resident{
			ID:              r.id,
			FirstName:       r.first,
			LastName:        r.last,
			ApartmentNumber: r.apt,
			Floor:           models.FlexString(r.floor),
			Role:            r.role,
		})
	}

	created := now.Add(-120 * 24 * time.Hour)
	me := models.User{
		ID:              "1",
		Email:           DemoEmail,
		FirstName:       "Maya",
		LastName:        "Thompson",
		Phone:           "+1 555 0142",
		Floor:           "4",
		ApartmentNumber: "4B",
		Bio:             "Coffee first, then code.",
		OrganizationID:  demoOrganization.ID,
		BuildingID:      "bld-1",
		Role:            "resident",
		CreatedAt:       &created,
	}
	c.accounts[DemoEmail] = account{user: me, password: DemoPassword}

	ago := func(d time.Duration) time.Time { return now.Add(-d) }

	c.posts = []models.Post{
		{
			ID: "1", Title: "Elevator maintenance next week",
			Content:    "Heads up: the elevator is out of service Monday to Wednesday for its yearly inspection. Please plan for the stairs.",
			Author:     c.author("2"),
			LikesCount: 12, CommentsCount: 3, LikedByMe: true, Category: "info",
			CreatedAt: ago(2 * time.Hour),
		},
		{
			ID: "2", Title: "Too many tomatoes",
			Content:    "The balcony garden went wild this year. Knock on 3C if you want some, they are free.",
			Author:     c.author("3"),
			ImageURL:   "https://images.komun.app/fixtures/tomatoes.jpg",
			LikesCount: 24, CommentsCount: 0, Category: "mutual-aid",
			CreatedAt: ago(5 * time.Hour),
		},
		{
			ID: "3", Title: "Friday potluck in the common room",
			Content:    "Friday 7pm in the common room. Bring a dish or a drink, we handle the music.",
			Author:     c.author("4"),
			LikesCount: 31, CommentsCount: 0, LikedByMe: true, Category: "event",
			CreatedAt: ago(8 * time.Hour),
		},
		{
			ID: "4", Title: "Unclaimed parcel in the lobby",
			Content:    "A parcel has been sitting by the mailboxes for two days. Does anyone recognise it?",
			Author:     c.author("5"),
			LikesCount: 3, CommentsCount: 0, Category: "question",
			CreatedAt: ago(24 * time.Hour),
		},
		{
			ID: "5", Title: "Bike room is open",
			Content:    "The basement bike room is finally accessible. Please close the door behind you.",
			Author:     c.author("2"),
			ImageURL:   "https://images.komun.app/fixtures/bikes.jpg",
			LikesCount: 19, CommentsCount: 0, Category: "info",
			CreatedAt: ago(48 * time.Hour),
		},
	}

	c.comments["1"] = []models.Comment{
		{ID: "1", PostID: "1", Content: "Thanks for the heads up, stairs it is.", Author: c.author("3"), CreatedAt: ago(110 * time.Minute)},
		{ID: "2", PostID: "1", Content: "How long will it take?", Author: c.author("4"), CreatedAt: ago(100 * time.Minute)},
		{ID: "3", PostID: "1", Content: "Three days if all goes well.", Author: c.author("2"), CreatedAt: ago(90 * time.Minute)},
	}

	c.channels = []models.Channel{
		{ID: "1", Name: "General", Description: "Everything about the building", UnreadCount: 3, MembersCount: 42, Icon: "🏠"},
		{ID: "2", Name: "Mutual aid", Description: "Borrow, lend, help out", LastMessagePreview: "Daniel: Anyone have a drill?", UnreadCount: 1, MembersCount: 38, Icon: "🤝"},
		{ID: "3", Name: "Noise", Description: "Report noise issues", LastMessagePreview: "Hannah: Quiet night so far", MembersCount: 35, Icon: "🔇"},
		{ID: "4", Name: "Parcels", Description: "Deliveries and pickups", LastMessagePreview: "Lucas: Got it, thanks!", MembersCount: 40, Icon: "📦"},
		{ID: "5", Name: "Garden", Description: "The shared garden", LastMessagePreview: "Omar: Strawberries are ready", UnreadCount: 5, MembersCount: 18, Icon: "🌱"},
	}
	for i, d := range []time.Duration{30 * time.Minute, 2 * time.Hour, 3 * time.Hour, 24 * time.Hour} {
		at := ago(d)
		c.channels[i+1].LastMessageAt = &at
	}

	general := []struct {
		author  string
		content string
		ago     time.Duration
	}{
		{"3", "Hi all, does anyone know when the caretaker is back?", 60 * time.Minute},
		{"2", "Monday, normally.", 50 * time.Minute},
		{"3", "Great, thanks Daniel!", 40 * time.Minute},
		{"4", "By the way, the garage door has not been closing properly. Anyone else noticed?", 30 * time.Minute},
		{"5", "Yes, since the storm last week I think.", 20 * time.Minute},
		{"2", "I called the property manager this morning.", 10 * time.Minute},
		{"2", "Have a good evening everyone!", time.Minute},
	}
	for i, m := range general {
		c.messages["1"] = append(c.messages["1"], models.Message{
			ID:        itoa(i + 1),
			ChannelID: "1",
			Content:   m.content,
			Author:    c.author(m.author),
			CreatedAt: ago(m.ago),
		})
	}
	c.channels[0].ApplyMessage(c.messages["1"][len(c.messages["1"])-1])

	c.notifications = []models.Notification{
		{ID: "1", Title: "New comment", Body: "Daniel replied to your post.", CreatedAt: ago(90 * time.Minute)},
		{ID: "2", Title: "Event reminder", Body: "Friday potluck at 7pm.", CreatedAt: ago(6 * time.Hour)},
		{ID: "3", Title: "Welcome", Body: "Welcome to Maple Court Residences!", Read: true, CreatedAt: ago(120 * 24 * time.Hour)},
	}

	return c
}
