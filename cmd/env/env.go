package env

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// Prefix is the prefix of the env variables the command flags are read from
const Prefix = "CNBRATES"

// DefaultFile is the env file loaded from the working directory
const DefaultFile = ".env"

// Load loads the given env files into the process env, so they are visible
// to flag parsing. Variables that are already set are kept, missing files are ignored
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultFile}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unable to load env file %s, %w", file, err)
		}
	}

	return nil
}
