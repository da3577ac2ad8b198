// Package domain holds DTOs for the clean http and service contracts
package domain

import (
	"encoding/json"

	"subsift/internal/core/pipeline"
)

// CleanInput is the body of POST /v1/clean
type CleanInput struct {
	// Language is a BCP 47 tag; empty falls back to the server default language
	Language string `json:"language,omitempty" validate:"omitempty,langtag" example:"en"`
	// Text is the whole SRT document
	Text string `json:"text" validate:"required"`
	// Options overlays the server settings for this request only. It has the
	// shape of the settings file: settings, text_cleaning and detection sections
	Options json.RawMessage `json:"options,omitempty"`
}

// CleanOutput is the cleaned document and its change report
type CleanOutput struct {
	Text   string           `json:"text"`
	Report *pipeline.Report `json:"report"`
}

// ProfileInfo describes one loaded language profile
type ProfileInfo struct {
	Language  string `json:"language" example:"en"`
	Detectors int    `json:"detectors"`
	Keywords  int    `json:"keywords"`
	Default   bool   `json:"default,omitempty"`
}
