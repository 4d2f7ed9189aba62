package config

import (
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/ajitpratap0/quack/pkg/errors"
)

// CheckDataDirectory verifies that the configured data directory exists, is a
// directory and is readable and writable by this process. Any failure is a
// DirectoryConfigError: quack cannot run without its storage directory.
func (c *Config) CheckDataDirectory() error {
	return CheckDataDirectory(c.DataDir)
}

// CheckDataDirectory validates dir the way CheckDataDirectory on Config does.
func CheckDataDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		switch {
		case stderrors.Is(err, fs.ErrNotExist):
			return errors.Wrap(err, errors.ErrorTypeDirectoryConfig, "directory `"+dir+"` doesn't exist").
				WithDetail("data_dir", dir)
		case stderrors.Is(err, fs.ErrPermission):
			return errors.Wrap(err, errors.ErrorTypeDirectoryConfig, "can't access `"+dir+"` directory").
				WithDetail("data_dir", dir)
		default:
			return errors.Wrap(err, errors.ErrorTypeDirectoryConfig, "other error when reading `"+dir+"`").
				WithDetail("data_dir", dir)
		}
	}

	if !info.IsDir() {
		return errors.New(errors.ErrorTypeDirectoryConfig, "`"+dir+"` is not a directory").
			WithDetail("data_dir", dir)
	}

	if err := checkReadWrite(dir); err != nil {
		return errors.Wrap(err, errors.ErrorTypeDirectoryConfig, "directory `"+dir+"` permission problem").
			WithDetail("data_dir", dir)
	}

	return nil
}
