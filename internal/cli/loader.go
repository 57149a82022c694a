package cli

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Config is the CUE configuration file:
//
//	database: "rps.db"
//	accounts: { alice: 1000, bob: 1000 }
//
// Accounts are genesis balances applied by "rps init".
type Config struct {
	Database string            `json:"database,omitempty"`
	Accounts map[string]uint64 `json:"accounts,omitempty"`
}

// configSchema closes the config: unknown fields are errors. Balances are
// capped at the ledger maximum.
const configSchema = `
#Config: {
	database?: string & !=""
	accounts?: [string]: int & >=0 & <=9223372036854775807
}
`

// LoadError represents an error that occurred while loading the config.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadConfig reads, validates and decodes a CUE config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading config: %v", err)}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema, cue.Filename("config-schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: firstMessage(err), Pos: errorPos(err)}
	}

	value = schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidConfig, Message: firstMessage(err), Pos: errorPos(err)}
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("decoding config: %v", err)}
	}
	return &cfg, nil
}

// errorPos returns the first valid position reported by a CUE error.
func errorPos(err error) token.Pos {
	for _, e := range cueerrors.Errors(err) {
		if p := e.Position(); p.IsValid() {
			return p
		}
	}
	return token.NoPos
}

// firstMessage returns the first CUE error message without its position.
func firstMessage(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	format, args := errs[0].Msg()
	return fmt.Sprintf(format, args...)
}

// Error code constants - unified across all CLI commands.
// Game rule rejections use the engine's codes instead.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeInvalidConfig = "E201" // Config violates the schema
	ErrCodeInvalidInput  = "E202" // Bad flag or argument value
)
