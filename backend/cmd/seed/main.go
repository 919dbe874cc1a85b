package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"diarymap/backend/internal/app"
	"diarymap/backend/internal/social"
	"diarymap/backend/pkg/config"
	"diarymap/backend/pkg/logger"
)

// Fixture is the seed file format. Friends and likes reference fb ids.
type Fixture struct {
	Users []FixtureUser `json:"users"`
}

type FixtureUser struct {
	social.Profile
	Latitude  *float64            `json:"latitude,omitempty"`
	Longitude *float64            `json:"longitude,omitempty"`
	Friends   []string            `json:"friends,omitempty"`
	Likes     []social.LikeTarget `json:"likes,omitempty"`
	Posts     []FixturePost       `json:"posts,omitempty"`
	Diaries   []social.DiaryInput `json:"diaries,omitempty"`
}

type FixturePost struct {
	Title string `json:"title"`
	Tags  string `json:"tags"`
	Text  string `json:"text"`
}

// Summary counts what a seed run wrote.
type Summary struct {
	Created int
	Skipped int
	Friends int
	Likes   int
	Posts   int
	Diaries int
}

func main() {
	file := flag.String("file", "", "JSON fixture to load (defaults to the built-in demo data)")
	force := flag.Bool("force", false, "Seed content even for users that were already registered")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...")

	fixture := demoFixture()
	if *file != "" {
		if fixture, err = loadFixture(*file); err != nil {
			log.Fatal("Failed to read fixture", zap.String("file", *file), zap.Error(err))
		}
	}

	if cfg.StoreBackend == config.BackendMemory && cfg.SpatialBackend == config.BackendMemory {
		log.Warn("Seeding the in-memory store; data is lost when this process exits")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	backend, err := app.Open(ctx, cfg, true)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer backend.Close()

	svc := social.NewService(backend.Store, social.WithImportConcurrency(cfg.ImportConcurrency))
	sum, err := seed(ctx, svc, fixture, *force)
	if err != nil {
		log.Fatal("Seeding failed", zap.Error(err))
	}

	log.Info("Seeding completed successfully!",
		zap.Int("users_created", sum.Created),
		zap.Int("users_skipped", sum.Skipped),
		zap.Int("friends", sum.Friends),
		zap.Int("likes", sum.Likes),
		zap.Int("posts", sum.Posts),
		zap.Int("diaries", sum.Diaries),
	)
}

func loadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, err
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return Fixture{}, fmt.Errorf("invalid fixture: %w", err)
	}
	return f, nil
}

// seed registers every fixture user, then writes their graph content in a
// second pass so friend lists can name users defined later in the file.
// Users that were already registered keep their content unless force is set.
func seed(ctx context.Context, svc *social.Service, f Fixture, force bool) (Summary, error) {
	var sum Summary
	ids := make(map[string]string, len(f.Users))
	fresh := make(map[string]bool, len(f.Users))

	for _, u := range f.Users {
		res, err := svc.Register(ctx, u.Profile)
		if err != nil {
			return sum, fmt.Errorf("register %s: %w", u.ExternalID, err)
		}
		ids[u.ExternalID] = res.ID
		fresh[u.ExternalID] = res.Registered
		if res.Registered {
			sum.Created++
		}
	}

	names := make(map[string]string, len(f.Users))
	for _, u := range f.Users {
		names[u.ExternalID] = u.Name
	}

	for _, u := range f.Users {
		if !fresh[u.ExternalID] && !force {
			sum.Skipped++
			continue
		}
		uid := ids[u.ExternalID]

		if u.Latitude != nil && u.Longitude != nil {
			if err := svc.UpdateLocation(ctx, uid, *u.Latitude, *u.Longitude); err != nil {
				return sum, fmt.Errorf("locate %s: %w", u.ExternalID, err)
			}
		}

		friends := make([]social.FriendProfile, 0, len(u.Friends))
		for _, fb := range u.Friends {
			friends = append(friends, social.FriendProfile{ExternalID: fb, Name: names[fb]})
		}
		if err := svc.ImportFriends(ctx, uid, friends); err != nil {
			return sum, fmt.Errorf("friends of %s: %w", u.ExternalID, err)
		}
		sum.Friends += len(friends)

		if err := svc.ImportLikes(ctx, uid, u.Likes); err != nil {
			return sum, fmt.Errorf("likes of %s: %w", u.ExternalID, err)
		}
		sum.Likes += len(u.Likes)

		for _, p := range u.Posts {
			if _, err := svc.PublishPost(ctx, uid, p.Title, p.Tags, p.Text); err != nil {
				return sum, fmt.Errorf("post %q of %s: %w", p.Title, u.ExternalID, err)
			}
			sum.Posts++
		}
		for _, d := range u.Diaries {
			if _, err := svc.PublishDiary(ctx, uid, d); err != nil {
				return sum, fmt.Errorf("diary %q of %s: %w", d.Title, u.ExternalID, err)
			}
			sum.Diaries++
		}
	}
	return sum, nil
}

func ptr(v float64) *float64 { return &v }

// demoFixture is a small neighbourhood around Taipei Main Station.
func demoFixture() Fixture {
	return Fixture{Users: []FixtureUser{
		{
			Profile:   social.Profile{ExternalID: "demo-alice", Name: "Alice", Gender: "female"},
			Latitude:  ptr(25.0478),
			Longitude: ptr(121.5170),
			Friends:   []string{"demo-bob"},
			Likes:     []social.LikeTarget{{ID: "page-hiking", Name: "Hiking"}, {ID: "page-tea", Name: "Bubble Tea"}},
			Posts: []FixturePost{
				{Title: "Elephant Mountain at dawn", Tags: "travel, hiking", Text: "Worth the early alarm."},
			},
			Diaries: []social.DiaryInput{
				{Title: "Station breakfast", Content: "Dan bing and soy milk.", Latitude: 25.0480, Longitude: 121.5172, Category: "food", Permission: "public"},
				{Title: "Note to self", Content: "Renew the MRT card.", Latitude: 25.0478, Longitude: 121.5170, Permission: "private"},
			},
		},
		{
			Profile:   social.Profile{ExternalID: "demo-bob", Name: "Bob", Gender: "male"},
			Latitude:  ptr(25.0485),
			Longitude: ptr(121.5160),
			Friends:   []string{"demo-alice", "demo-carol"},
			Likes:     []social.LikeTarget{{ID: "page-hiking", Name: "Hiking"}},
			Posts: []FixturePost{
				{Title: "Night market haul", Tags: "food, travel", Text: "Pepper buns everywhere."},
			},
			Diaries: []social.DiaryInput{
				{Title: "Rainy bookstore", Content: "Spent the afternoon reading.", Latitude: 25.0460, Longitude: 121.5150, Category: "leisure", Permission: "friends"},
			},
		},
		{
			Profile:   social.Profile{ExternalID: "demo-carol", Name: "Carol", Gender: "female"},
			Latitude:  ptr(25.0330),
			Longitude: ptr(121.5654),
			Friends:   []string{"demo-bob", "demo-dave"},
			Likes:     []social.LikeTarget{{ID: "page-tea", Name: "Bubble Tea"}},
			Posts: []FixturePost{
				{Title: "Taipei 101 fireworks", Tags: "travel, music", Text: "Countdown crowd was huge."},
			},
		},
	}}
}
