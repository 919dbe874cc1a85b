package graph

import (
	"diarymap/backend/internal/social"
)

// ============================================================================
// Row mapping
// ============================================================================

// summaryProjection is the {id, name, gender, portrait, nickname} map
// returned for user rows; alias must name a bound User variable.
func summaryProjection(alias string) string {
	return "{id: " + alias + ".id, name: " + alias + ".name, gender: " + alias +
		".gender, portrait: " + alias + ".portrait, nickname: " + alias + ".nickname}"
}

func userFromProps(props map[string]interface{}) *social.User {
	u := &social.User{
		ID:          getStringFromMap(props, "id"),
		ExternalID:  getStringFromMap(props, "fb_id"),
		Name:        getStringFromMap(props, "name"),
		Email:       getStringFromMap(props, "email"),
		Gender:      getStringFromMap(props, "gender"),
		AccessToken: getStringFromMap(props, "access_token"),
		Portrait:    getStringFromMap(props, "portrait"),
		Nickname:    getStringFromMap(props, "nickname"),
		WKT:         getStringFromMap(props, "wkt"),
	}
	if lat, ok := getFloat64FromMap(props, "latitude"); ok {
		u.Latitude = &lat
	}
	if lon, ok := getFloat64FromMap(props, "longitude"); ok {
		u.Longitude = &lon
	}
	return u
}

func summaryFromProps(props map[string]interface{}) social.UserSummary {
	return social.UserSummary{
		ID:       getStringFromMap(props, "id"),
		Name:     getStringFromMap(props, "name"),
		Gender:   getStringFromMap(props, "gender"),
		Portrait: getStringFromMap(props, "portrait"),
		Nickname: getStringFromMap(props, "nickname"),
	}
}

func postFromProps(props map[string]interface{}) social.Post {
	created, _ := getFloat64FromMap(props, "created_at")
	return social.Post{
		ID:        getStringFromMap(props, "id"),
		Title:     getStringFromMap(props, "title"),
		Text:      getStringFromMap(props, "text"),
		CreatedAt: created,
		Date:      getStringFromMap(props, "date"),
	}
}

func postParams(p social.Post) map[string]interface{} {
	return map[string]interface{}{
		"id":         p.ID,
		"title":      p.Title,
		"text":       p.Text,
		"created_at": p.CreatedAt,
		"date":       p.Date,
	}
}

func diaryFromProps(props map[string]interface{}) social.Diary {
	created, _ := getFloat64FromMap(props, "created_at")
	lat, _ := getFloat64FromMap(props, "latitude")
	lon, _ := getFloat64FromMap(props, "longitude")
	return social.Diary{
		ID:         getStringFromMap(props, "id"),
		Title:      getStringFromMap(props, "title"),
		Content:    getStringFromMap(props, "content"),
		CreatedAt:  created,
		Date:       getStringFromMap(props, "date"),
		Latitude:   lat,
		Longitude:  lon,
		WKT:        getStringFromMap(props, "wkt"),
		Category:   getStringFromMap(props, "category"),
		Location:   getStringFromMap(props, "location"),
		Address:    getStringFromMap(props, "address"),
		Permission: getStringFromMap(props, "permission"),
	}
}

func diaryParams(d social.Diary) map[string]interface{} {
	return map[string]interface{}{
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
