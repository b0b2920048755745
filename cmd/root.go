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

// A fuse file system backed by a relational database.
//
// Usage:
//
//	sqlfs [flags] [database] mountpoint
package cmd

import (
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/greenbender/sqlfs-go/cfg"
	"github.com/greenbender/sqlfs-go/internal/util"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	MountConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "sqlfs [flags] [database] mountpoint",
	Short: "Mount a relational database as a local file system",
	Long: `sqlfs is a FUSE adapter that stores a file system's inodes, directory
          entries and file content inside a SQL database, in-memory or on
          disk. With no DATABASE argument the store is created fresh in
          memory and discarded on unmount.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.ValidateConfig(&MountConfig); err != nil {
			return err
		}
		databasePath, mountPoint, err := populateArgs(args)
		if err != nil {
			return err
		}
		return run(databasePath, mountPoint, &MountConfig)
	},
}

// populateArgs splits the positional arguments into an optional database
// path and a required mount point, canonicalizing the mount point so it
// survives daemonize's working-directory change.
func populateArgs(args []string) (databasePath string, mountPoint string, err error) {
	switch len(args) {
	case 1:
		databasePath = ""
		mountPoint = args[0]
	case 2:
		databasePath = args[0]
		mountPoint = args[1]
	default:
		err = fmt.Errorf(
			"%s takes one or two arguments. Run `%s --help` for more info.",
			path.Base(os.Args[0]),
			path.Base(os.Args[0]))
		return
	}

	mountPoint, err = util.GetResolvedPath(mountPoint)
	if err != nil {
		err = fmt.Errorf("canonicalizing mount point: %w", err)
		return
	}

	if databasePath != "" {
		databasePath, err = util.GetResolvedPath(databasePath)
		if err != nil {
			err = fmt.Errorf("canonicalizing database path: %w", err)
			return
		}
	}
	return
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaultLogging := cfg.GetDefaultLoggingConfig()
	viper.SetDefault("logging.log-rotate.max-file-size-mb", defaultLogging.LogRotate.MaxFileSizeMb)
	viper.SetDefault("logging.log-rotate.backup-file-count", defaultLogging.LogRotate.BackupFileCount)
	viper.SetDefault("logging.log-rotate.compress", defaultLogging.LogRotate.Compress)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the config-file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()), cfg.TagNameOption)
		return
	}
	resolved, err := util.GetResolvedPath(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("error while resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()), cfg.TagNameOption)
}
