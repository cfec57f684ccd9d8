package client

import (
	"fmt"
	"strconv"

	"github.com/Belphemur/opensubtitles-dl/internal/models"
)

// decodeSearchResponse converts the generic XML-RPC struct returned by
// SearchSubtitles. "data" is an array of hit structs, or the boolean false
// when nothing matched.
func decodeSearchResponse(members map[string]interface{}) (*models.SearchResponse, error) {
	response := &models.SearchResponse{
		Status: stringMember(members, "status"),
		Data:   []models.SearchHit{},
	}

	if seconds, ok := members["seconds"].(float64); ok {
		response.Seconds = seconds
	}

	switch data := members["data"].(type) {
	case nil, bool:
	case []interface{}:
		for i, item := range data {
			hit, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("data[%d]: unexpected type %T", i, item)
			}
			response.Data = append(response.Data, decodeHit(hit))
		}
	default:
		return nil, fmt.Errorf("data: unexpected type %T", data)
	}

	return response, nil
}

func decodeHit(m map[string]interface{}) models.SearchHit {
	return models.SearchHit{
		MovieName:       stringMember(m, "MovieName"),
		MovieYear:       stringMember(m, "MovieYear"),
		IDSubtitleFile:  stringMember(m, "IDSubtitleFile"),
		SubFileName:     stringMember(m, "SubFileName"),
		SubDownloadLink: stringMember(m, "SubDownloadLink"),
		SubEncoding:     stringMember(m, "SubEncoding"),
		LanguageName:    stringMember(m, "LanguageName"),
		SubLanguageID:   stringMember(m, "SubLanguageID"),
		SubFormat:       stringMember(m, "SubFormat"),
		IDMovieImdb:     stringMember(m, "IDMovieImdb"),
	}
}

// stringMember returns a struct member as a string. The API sends nearly
// everything as strings but a few members arrive as int or double.
func stringMember(m map[string]interface{}, name string) string {
	switch v := m[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
