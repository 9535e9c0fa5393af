package keys

import (
	"errors"
	"fmt"
	"io"

	"fxhedge/src/security"
)

var ErrNoKey = errors.New("pass the api key as argument or set ORACLE_UPDATE_API_KEY")

// Hash writes the ORACLE_API_KEY_HASH line for key, falling back to the
// configured ORACLE_UPDATE_API_KEY.
func Hash(w io.Writer, key string) error {
	if key == "" {
		key = GetConfig().APIKey
	}
	if key == "" {
		return ErrNoKey
	}
	h, err := security.HashAPIKey(key)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "ORACLE_API_KEY_HASH=%s\n", h)
	return err
}
