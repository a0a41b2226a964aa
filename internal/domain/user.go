package domain

import (
	"fmt"
	"strings"

	"github.com/hilthontt/votehub/internal/infrastructure/validate"
)

const (
	maxUserNameLength = 32
	maxTopicLength    = 120
)

var (
	validateUserName = validate.Field("userName",
		validate.Required(),
		validate.MaxLength(maxUserNameLength),
		validate.Printable(),
	)

	validateTopic = validate.Field("topic",
		validate.MaxLength(maxTopicLength),
		validate.Printable(),
	)
)

// NormalizeUserName trims a display name and checks it is usable as a label.
// Names are not identities; two connections may share one.
func NormalizeUserName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := validateUserName(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return name, nil
}

func normalizeTopic(raw string) (string, error) {
	topic := strings.TrimSpace(raw)
	if topic == "" {
		return DefaultTopic, nil
	}
	if err := validateTopic(topic); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return topic, nil
}
