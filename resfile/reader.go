package resfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type UnmarshalError struct {
	error
	Source string
}

// Read loads and validates a reservation file.
func Read(file string) (Resfile, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return Resfile{}, fmt.Errorf("read file: %w", err)
	}

	var resfile Resfile
	if err = yaml.Unmarshal(buf, &resfile); err != nil {
		return Resfile{}, UnmarshalError{fmt.Errorf("unmarshal: %w", err), string(buf)}
	}
	if err = resfile.Validate(); err != nil {
		return Resfile{}, UnmarshalError{fmt.Errorf("validate: %w", err), string(buf)}
	}

	return resfile, nil
}
