// Package social holds the domain model of the diary network and the Service
// that resolves identities, validates writes and fronts the graph queries.
package social

import (
	"strings"

	"diarymap/backend/internal/constants"
	"diarymap/backend/internal/geo"
)

// User is a member of the network. Stub users imported from a friend list
// carry only ExternalID and Name until they register.
type User struct {
	ID          string   `json:"id"`
	ExternalID  string   `json:"fb_id"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	AccessToken string   `json:"-"`
	Portrait    string   `json:"portrait,omitempty"`
	Nickname    string   `json:"nickname,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	WKT         string   `json:"wkt,omitempty"`
}

// Location returns the user's coordinates when both are set.
func (u *User) Location() (geo.Point, bool) {
	if u == nil || u.Latitude == nil || u.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *u.Latitude, Lon: *u.Longitude}, true
}

// SetLocation stores p on the user, WKT included.
func (u *User) SetLocation(p geo.Point) {
	lat, lon := p.Lat, p.Lon
	u.Latitude = &lat
	u.Longitude = &lon
	u.WKT = p.WKT()
}

// Summary projects the user onto the public fields returned by queries.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Name:     u.Name,
		Gender:   u.Gender,
		Portrait: u.Portrait,
		Nickname: u.Nickname,
	}
}

// Profile is what the identity provider hands over on login.
type Profile struct {
	ExternalID  string `json:"fb_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Gender      string `json:"gender"`
	AccessToken string `json:"access_token"`
	Portrait    string `json:"portrait"`
}

// FriendProfile is one entry of the provider friend list.
type FriendProfile struct {
	ExternalID string `json:"id"`
	Name       string `json:"name"`
}

// LikeTarget is an external page or object the user liked on the provider.
type LikeTarget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserSummary is the projection {id, name, gender, portrait, nickname}.
type UserSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Portrait string `json:"portrait"`
	Nickname string `json:"nickname,omitempty"`
}

// CommonLikeUser is another user sharing at least one like target.
type CommonLikeUser struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Gender              string `json:"gender"`
	Portrait            string `json:"portrait"`
	AmountOfCommonLikes int    `json:"amount_of_common_likes"`
}

// SimilarUser is a user ranked by the tags both users have written about.
type SimilarUser struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// Commonality measures how B relates to A: Likes counts B's likes on posts A
// published, Tags lists the tags both have used.
type Commonality struct {
	Likes int      `json:"likes"`
	Tags  []string `json:"tags"`
}

// Post is a short tagged text entry.
type Post struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Text      string  `json:"text"`
	CreatedAt float64 `json:"created_at"`
	Date      string  `json:"date"`
}

// PostWithTags is one row of the recent posts feed.
type PostWithTags struct {
	Post   Post        `json:"post"`
	Author UserSummary `json:"author"`
	Tags   []string    `json:"tags"`
}

// Diary is a geotagged entry. Diaries always carry coordinates.
type Diary struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	CreatedAt  float64 `json:"created_at"`
	Date       string  `json:"date"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	WKT        string  `json:"wkt"`
	Category   string  `json:"category"`
	Location   string  `json:"location"`
	Address    string  `json:"address"`
	Permission string  `json:"permission"`
}

// Point returns the diary coordinates.
func (d *Diary) Point() geo.Point {
	return geo.Point{Lat: d.Latitude, Lon: d.Longitude}
}

// DiaryInput carries the caller-supplied fields of a new diary.
type DiaryInput struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Category   string  `json:"category"`
	Location   string  `json:"location"`
	Address    string  `json:"address"`
	Permission string  `json:"permission"`
}

// FriendDiary is one row of the friends' diary feed.
type FriendDiary struct {
	Diary  Diary       `json:"diary"`
	Friend UserSummary `json:"friend"`
}

// NearbyDiary is a diary found by radius search, with its author.
type NearbyDiary struct {
	Diary      Diary       `json:"diary"`
	Author     UserSummary `json:"author"`
	DistanceKm float64     `json:"distance_km"`
}

// RegisterOutcome tells which branch of registration ran.
type RegisterOutcome string

const (
	OutcomeCreated           RegisterOutcome = "created"
	OutcomeBackfilled        RegisterOutcome = "backfilled"
	OutcomeAlreadyRegistered RegisterOutcome = "already_registered"
)

// RegisterResult is returned by Register. Registered is false when the
// external id was already fully registered; ID is the existing id then.
type RegisterResult struct {
	ID         string          `json:"id"`
	Registered bool            `json:"registered"`
	Outcome    RegisterOutcome `json:"outcome"`
}

// NormalizePermission maps an empty permission to public and rejects unknown
// values.
func NormalizePermission(p string) (string, bool) {
	switch p = strings.ToLower(strings.TrimSpace(p)); p {
	case "":
		return constants.PermissionPublic, true
	case constants.PermissionPublic, constants.PermissionFriends, constants.PermissionPrivate:
		return p, true
	default:
		return "", false
	}
}

// ParseTags splits a comma separated tag list into lowercase, trimmed,
// de-duplicated names, keeping first-seen order and dropping empty names.
func ParseTags(csv string) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, raw := range strings.Split(strings.ToLower(csv), ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tags = append(tags, name)
	}
	return tags
}
