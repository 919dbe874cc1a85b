package memgraph

import (
	"diarymap/backend/internal/social"
)

func userFromNode(n *Node) *social.User {
	u := &social.User{
		ID:          n.String("id"),
		ExternalID:  n.String("fb_id"),
		Name:        n.String("name"),
		Email:       n.String("email"),
		Gender:      n.String("gender"),
		AccessToken: n.String("access_token"),
		Portrait:    n.String("portrait"),
		Nickname:    n.String("nickname"),
		WKT:         n.String("wkt"),
	}
	if lat, ok := n.Float("latitude"); ok {
		u.Latitude = &lat
	}
	if lon, ok := n.Float("longitude"); ok {
		u.Longitude = &lon
	}
	return u
}

func summaryFromNode(n *Node) social.UserSummary {
	return social.UserSummary{
		ID:       n.String("id"),
		Name:     n.String("name"),
		Gender:   n.String("gender"),
		Portrait: n.String("portrait"),
		Nickname: n.String("nickname"),
	}
}

func profileProps(p social.Profile) map[string]any {
	return map[string]any{
		"name":         p.Name,
		"email":        p.Email,
		"gender":       p.Gender,
		"access_token": p.AccessToken,
		"portrait":     p.Portrait,
	}
}

func postProps(p social.Post) map[string]any {
	return map[string]any{
		"id":         p.ID,
		"title":      p.Title,
		"text":       p.Text,
		"created_at": p.CreatedAt,
		"date":       p.Date,
	}
}

func postFromNode(n *Node) social.Post {
	created, _ := n.Float("created_at")
	return social.Post{
		ID:        n.String("id"),
		Title:     n.String("title"),
		Text:      n.String("text"),
		CreatedAt: created,
		Date:      n.String("date"),
	}
}

func diaryProps(d social.Diary) map[string]any {
	return map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"content":    d.Content,
		"created_at": d.CreatedAt,
		"date":       d.Date,
		"latitude":   d.Latitude,
		"longitude":  d.Longitude,
		"wkt":        d.WKT,
		"category":   d.Category,
		"location":   d.Location,
		"address":    d.Address,
		"permission": d.Permission,
	}
}

func diaryFromNode(n *Node) social.Diary {
	created, _ := n.Float("created_at")
	lat, _ := n.Float("latitude")
	lon, _ := n.Float("longitude")
	return social.Diary{
		ID:         n.String("id"),
		Title:      n.String("title"),
		Content:    n.String("content"),
		CreatedAt:  created,
		Date:       n.String("date"),
		Latitude:   lat,
		Longitude:  lon,
		WKT:        n.String("wkt"),
		Category:   n.String("category"),
		Location:   n.String("location"),
		Address:    n.String("address"),
		Permission: n.String("permission"),
	}
}
