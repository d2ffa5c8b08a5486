package request

import (
	"fmt"
	"net/http"
	"strconv"
)

// MaxLimit caps the number of rows any list endpoint returns
const MaxLimit = 100

// Limit reads the "limit" query parameter. A missing value yields def; a
// value that is not a positive integer is an error; large values are capped.
func Limit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return min(n, MaxLimit), nil
}
