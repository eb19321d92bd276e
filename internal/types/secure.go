package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential such as the OpsGenie API key. String and
// MarshalJSON return a placeholder so the value never reaches logs, console
// output or serialized config dumps. Use Unmask where the raw value is needed.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// GoString keeps %#v from printing the raw value.
func (s SecretString) GoString() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. The only production
// caller is the delivery client building the request URI.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether no secret was provided.
func (s SecretString) IsEmpty() bool {
	return s == ""
}
