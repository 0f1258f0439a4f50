package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct tag validation and flattens the failures into
// field -> reason pairs.
func Validate(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return map[string]string{"request": err.Error()}
	}
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[jsonName(e.Field())] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return out
}

func jsonName(field string) string {
	switch field {
	case "SessionID":
		return "session_id"
	default:
		return strings.ToLower(field)
	}
}

type ChatParams struct {
	Query     string `json:"query" validate:"required,max=4000"`
	SessionID string `json:"session_id" validate:"omitempty,uuid"`
}

func (p *ChatParams) Validate() map[string]string {
	p.Query = strings.TrimSpace(p.Query)
	p.SessionID = strings.TrimSpace(p.SessionID)
	return Validate(p)
}

type ChatResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	Mode      string   `json:"mode"`
	Score     float64  `json:"score"`
	SessionID string   `json:"session_id"`
}

type UploadResponse struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Skipped  bool   `json:"skipped"`
	Message  string `json:"message"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
}

type StatsResponse struct {
	Chunks   int      `json:"chunks"`
	Sources  []string `json:"sources"`
	Sessions int      `json:"sessions"`
}
