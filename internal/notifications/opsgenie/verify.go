package opsgenie

import (
	"bytes"
	"encoding/json"
	"errors"

	"buildalert/internal/types"
)

// response is the only shape the integration answers with. Unknown fields
// are ignored. Error is kept raw so scalars other than strings can be read
// as text.
type response struct {
	Error json.RawMessage `json:"error"`
}

var errNonScalarError = errors.New(`"error" is neither a string nor a scalar`)

// errorText reads the "error" value as text: null or absent is "", a string
// is its content, and a number or boolean is its literal form. Objects and
// arrays are not accepted.
func errorText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", errNonScalarError
	default:
		return string(raw), nil
	}
}

// Verdict is the classification of one OpsGenie response.
type Verdict struct {
	Success bool
	// Err is set when the response was rejected, or when it could not be
	// parsed and Success fell back to "the body is non-empty".
	Err *types.AppError
}

// Verify classifies a raw response body. A JSON object whose "error" is
// absent, null or "" is a success; any other string, number or boolean is a
// rejection. A body that cannot be read that way (not an object, or an
// object or array under "error") counts as a success iff it is non-empty,
// and the verdict carries a parse error so the weaker decision stays visible.
func Verify(raw string) Verdict {
	var resp response
	err := json.Unmarshal([]byte(raw), &resp)
	var text string
	if err == nil {
		text, err = errorText(resp.Error)
	}
	if err != nil {
		return Verdict{
			Success: raw != "",
			Err:     types.NewAppError(types.ErrCodeResponseParse, "failed to parse opsgenie response", err),
		}
	}

	if text != "" {
		return Verdict{
			Success: false,
			Err: types.NewAppError(types.ErrCodeResponseRejected, "opsgenie rejected the notification", nil).
				WithDetails(map[string]any{"error": text}),
		}
	}
	return Verdict{Success: true}
}
