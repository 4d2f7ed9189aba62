//go:build unix

package config

import "golang.org/x/sys/unix"

func checkReadWrite(dir string) error {
	return unix.Access(dir, unix.R_OK|unix.W_OK)
}
