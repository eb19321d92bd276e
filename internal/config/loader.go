// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Load .env file via godotenv (non-fatal if absent).
//  2. Resolve <SECRET>_FILE variables via the SecretProvider, injecting the
//     values back into the environment.
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"buildalert/internal/types"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// secretFileSuffix marks environment variables that point at a secret file.
// OPSGENIE_API_KEY_FILE=/run/secrets/og resolves into OPSGENIE_API_KEY.
const secretFileSuffix = "_FILE"

// secretFileTargets are the variables that may be supplied as files.
var secretFileTargets = []string{"OPSGENIE_API_KEY"}

// secretResolveTimeout bounds the secret provider call.
const secretResolveTimeout = 10 * time.Second

type envLookup func(key string) (string, bool)

type envSet func(key, value string) error

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv  envLookup
	setEnv     envSet
	loadDotenv func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		loadDotenv: func() error {
			return godotenv.Load()
		},
	}
}

// LoadConfig loads and validates the configuration.
//
// The provider resolves *_FILE references. It may be nil, in which case any
// *_FILE variable whose target is unset is reported as an error.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	// godotenv does NOT override existing environment variables, and a
	// missing .env file is the normal case on CI agents.
	_ = deps.loadDotenv()

	if err := resolveSecretFiles(provider, deps); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := NewValidator().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// NewValidator returns a validator with the module's custom tags registered:
//
//	priority - an OpsGenie priority accepted by types.ParsePriority
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return types.ParsePriority(fl.Field().String()).IsSet()
	})
	return v
}

// resolveSecretFiles looks up <NAME>_FILE for every name in
// secretFileTargets, reads the referenced files via the provider, and injects
// the contents under NAME so that envconfig can process them.
//
// If the target variable is already set, the file is not read. This respects
// the priority chain: OS Environment > Dotenv > secret file.
func resolveSecretFiles(provider SecretProvider, deps loaderDeps) error {
	pathToTarget := make(map[string]string)
	var paths []string

	for _, target := range secretFileTargets {
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		path, ok := deps.lookupEnv(target + secretFileSuffix)
		if !ok || path == "" {
			continue
		}
		paths = append(paths, path)
		pathToTarget[path] = target
	}

	if len(paths) == 0 {
		return nil
	}

	if provider == nil {
		targets := make([]string, 0, len(paths))
		for _, p := range paths {
			targets = append(targets, pathToTarget[p])
		}
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("SecretProvider is required to resolve: %s", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), secretResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("failed to resolve %d secret files", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		target := pathToTarget[path]
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSecretResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("secret files not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
