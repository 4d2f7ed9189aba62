//go:build !unix

package config

import "os"

// checkReadWrite probes the directory by creating and removing a file, as
// access(2) is not available on this platform.
func checkReadWrite(dir string) error {
	f, err := os.CreateTemp(dir, ".quack-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
