// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `yaml:"app-name"`

	Database DatabaseConfig `yaml:"database"`

	FileSystem FileSystemConfig `yaml:"file-system"`

	Foreground bool `yaml:"foreground"`

	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig names the relational store backing the mount and whether
// it should be opened under an encryption key.
type DatabaseConfig struct {
	// Path to the database file. Empty means an in-memory, non-persistent
	// store.
	Path ResolvedPath `yaml:"path"`

	// Encrypt indicates the database should be opened under a
	// password-derived key, prompted for on stdin at mount time.
	Encrypt bool `yaml:"encrypt"`
}

type FileSystemConfig struct {
	// FileMode is the permission bits applied to regular files created
	// through the mount.
	FileMode Octal `yaml:"file-mode"`

	// DirMode is the permission bits applied to directories created
	// through the mount.
	DirMode Octal `yaml:"dir-mode"`

	// Uid is the owning uid stamped on newly created inodes. A negative
	// value means the uid of the user invoking sqlfs.
	Uid int `yaml:"uid"`

	// Gid is the owning gid stamped on newly created inodes. A negative
	// value means the gid of the user invoking sqlfs's primary group.
	Gid int `yaml:"gid"`

	// FuseOptions holds the raw values of repeated "-o" flags, passed
	// through to the kernel mount call largely uninterpreted.
	FuseOptions []string `yaml:"fuse-options"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	FilePath ResolvedPath `yaml:"file-path"`

	Format string `yaml:"format"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "", "The application name of this mount.")

	err = viper.BindPFlag("app-name", flagSet.Lookup("app-name"))
	if err != nil {
		return err
	}

	flagSet.BoolP("e", "e", false, "Open the database under a password-derived encryption key.")

	err = viper.BindPFlag("database.encrypt", flagSet.Lookup("e"))
	if err != nil {
		return err
	}

	flagSet.BoolP("f", "f", false, "Run in the foreground instead of daemonizing.")

	err = viper.BindPFlag("foreground", flagSet.Lookup("f"))
	if err != nil {
		return err
	}

	flagSet.IntP("file-mode", "", 0644, "Permission bits for files, in octal.")

	err = viper.BindPFlag("file-system.file-mode", flagSet.Lookup("file-mode"))
	if err != nil {
		return err
	}

	flagSet.IntP("dir-mode", "", 0755, "Permission bits for directories, in octal.")

	err = viper.BindPFlag("file-system.dir-mode", flagSet.Lookup("dir-mode"))
	if err != nil {
		return err
	}

	flagSet.IntP("uid", "", -1, "UID owner of all inodes. Defaults to the invoking user.")

	err = viper.BindPFlag("file-system.uid", flagSet.Lookup("uid"))
	if err != nil {
		return err
	}

	flagSet.IntP("gid", "", -1, "GID owner of all inodes. Defaults to the invoking user's primary group.")

	err = viper.BindPFlag("file-system.gid", flagSet.Lookup("gid"))
	if err != nil {
		return err
	}

	flagSet.StringArrayP("o", "o", nil, "Additional system-specific mount options. Can be used multiple times.")

	err = viper.BindPFlag("file-system.fuse-options", flagSet.Lookup("o"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Logging severity. One of TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")

	err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file. Empty logs to stderr.")

	err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log entry format. One of text, json.")

	err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format"))
	if err != nil {
		return err
	}

	return nil
}
