package config

import (
	"sync"

	"github.com/petekp/claude-hud-sub008/schema"
)

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// SchemaValidator returns the compiled validator for the Config schema.
// The schema is reflected and compiled once per process.
func SchemaValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		data, err := GenerateSchema()
		if err != nil {
			validatorErr = err
			return
		}
		validator, validatorErr = schema.Compile("hud.json", data)
	})
	return validator, validatorErr
}
