package utils

import (
	"encoding/json"
)

func MarshalToJSON[T any](input T) ([]byte, error) {
	return json.Marshal(input)
}
