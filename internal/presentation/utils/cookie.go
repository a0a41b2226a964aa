package utils

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/hilthontt/votehub/internal/domain"
)

const (
	// CookieCreatorPrefix is followed by the room code.
	CookieCreatorPrefix = "votehub_creator_"

	creatorCookieTTL = 24 * time.Hour
)

func creatorCookieName(roomCode string) string {
	return CookieCreatorPrefix + domain.NormalizeRoomCode(roomCode)
}

// SetCreatorCookie hands the creator token to browsers so a later
// websocket connection can prove creatorship without the client storing it.
func SetCreatorCookie(w http.ResponseWriter, r *http.Request, roomCode, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     creatorCookieName(roomCode),
		Value:    base64.RawURLEncoding.EncodeToString([]byte(token)),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(creatorCookieTTL),
	})
}

// GetCreatorToken returns the creator token stored for roomCode, or "".
func GetCreatorToken(r *http.Request, roomCode string) string {
	cookie, err := r.Cookie(creatorCookieName(roomCode))
	if err != nil {
		return ""
	}
	return decodeToken(cookie.Value)
}

// CreatorTokens returns every creator token the request carries, keyed by
// room code.
func CreatorTokens(r *http.Request) map[string]string {
	tokens := make(map[string]string)
	for _, cookie := range r.Cookies() {
		code, ok := strings.CutPrefix(cookie.Name, CookieCreatorPrefix)
		if !ok || code == "" {
			continue
		}
		if token := decodeToken(cookie.Value); token != "" {
			tokens[code] = token
		}
	}
	return tokens
}

func decodeToken(value string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return ""
	}
	return string(decoded)
}
