package model

import (
	"encoding/json"
	"time"
)

const (
	ServiceName = "fxhedge"

	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

// Exception represents a fault that must be persisted for auditing:
// configuration errors and unexpected write failures.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "fxhedge"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "txflow"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "Activate"

	Message string `gorm:"type:text" json:"message"`
	Kind    string `gorm:"size:40;index" json:"kind"` // ledger error kind, if any

	Level string `gorm:"size:20;index" json:"level"` // warn | error | fatal

	// Extra context stored as JSON text
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewException builds an exception row for module/method; ctx is marshalled to JSON when present.
func NewException(module, method, kind, level string, err error, ctx map[string]interface{}) *Exception {
	exc := &Exception{
		Service: ServiceName,
		Module:  module,
		Method:  method,
		Kind:    kind,
		Level:   level,
	}
	if err != nil {
		exc.Message = err.Error()
	}
	if len(ctx) > 0 {
		if b, mErr := json.Marshal(ctx); mErr == nil {
			exc.Context = string(b)
		}
	}
	return exc
}
