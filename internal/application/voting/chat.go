package voting

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/validate"
)

var (
	errAudioTooLarge = errors.New("audio payload too large")
	errAudioEncoding = errors.New("audio payload is not base64")
	errAudioMIME     = errors.New("data url is not audio")

	validateImageURL = validate.HTTPURL()
)

// checkPayload reports whether a chat payload is acceptable for its type.
func (s *Service) checkPayload(payload string, messageType domain.MessageType) error {
	switch messageType {
	case domain.MessageImage:
		return validateImageURL(payload)
	case domain.MessageAudio:
		return checkAudio(payload, s.cfg.MaxAudioBytes)
	}
	return nil
}

// checkAudio accepts raw base64 or a data:audio/...;base64, URL whose decoded
// size stays within maxBytes.
func checkAudio(payload string, maxBytes int) error {
	data := payload
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found || !strings.HasPrefix(header, "audio/") || !strings.HasSuffix(header, ";base64") {
			return errAudioMIME
		}
		data = body
	}

	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(data)) > maxBytes+2 {
		return errAudioTooLarge
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return errAudioEncoding
	}
	if maxBytes > 0 && len(decoded) > maxBytes {
		return errAudioTooLarge
	}
	return nil
}
