// Copyright 2024 Google LLC
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

package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"

	"github.com/jacobsa/daemonize"
	"github.com/jacobsa/fuse"
	"github.com/kardianos/osext"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/greenbender/sqlfs-go/cfg"
	"github.com/greenbender/sqlfs-go/clock"
	"github.com/greenbender/sqlfs-go/fs"
	"github.com/greenbender/sqlfs-go/internal/logger"
	"github.com/greenbender/sqlfs-go/internal/mount"
	"github.com/greenbender/sqlfs-go/internal/perms"
	"github.com/greenbender/sqlfs-go/internal/store"
	"github.com/greenbender/sqlfs-go/internal/util"
)

const fsName = "sqlfs"

const (
	successfulMountMessage         = "File system has been successfully mounted."
	unsuccessfulMountMessagePrefix = "Error while mounting sqlfs"
)

// sqlfsInBackgroundMode marks the re-exec'd child spawned by
// daemonizeAndWait, distinguishing it from a process the user ran
// directly with --foreground.
const sqlfsInBackgroundMode = "SQLFS_IN_BACKGROUND_MODE"

// run dispatches to the foreground mount path, the daemonize child path,
// or the daemonize parent path, depending on how this invocation got
// here.
func run(databasePath string, mountPoint string, config *cfg.Config) error {
	if err := logger.InitLogFile(config.Logging); err != nil {
		return fmt.Errorf("init log file: %w", err)
	}
	defer logger.Close()

	if os.Getenv(sqlfsInBackgroundMode) != "" {
		return mountChild(databasePath, mountPoint, config)
	}
	if config.Foreground {
		return mountForeground(databasePath, mountPoint, config)
	}
	return daemonizeAndWait(databasePath, mountPoint, config)
}

// mountForeground mounts and blocks until the file system is unmounted,
// without any daemonize parent waiting on an outcome signal.
func mountForeground(databasePath string, mountPoint string, config *cfg.Config) error {
	mfs, err := mountWithArgs(databasePath, mountPoint, config)
	if err != nil {
		return fmt.Errorf("%s: %w", unsuccessfulMountMessagePrefix, err)
	}
	logger.Info(successfulMountMessage)
	registerSIGINTHandler(mfs.Dir())
	return mfs.Join(context.Background())
}

// mountChild is the body of the process daemonizeAndWait spawns. It
// signals the parent with the mount outcome before settling in to serve
// requests, mirroring the contract jacobsa/daemonize expects.
func mountChild(databasePath string, mountPoint string, config *cfg.Config) error {
	mfs, err := mountWithArgs(databasePath, mountPoint, config)
	if err != nil {
		daemonize.SignalOutcome(fmt.Errorf("%s: %w", unsuccessfulMountMessagePrefix, err))
		return err
	}
	daemonize.SignalOutcome(nil)
	registerSIGINTHandler(mfs.Dir())
	return mfs.Join(context.Background())
}

// daemonizeAndWait re-execs the current binary in the background with
// --foreground forced on, and blocks until the child signals whether the
// mount succeeded.
func daemonizeAndWait(databasePath string, mountPoint string, config *cfg.Config) error {
	path, err := osext.Executable()
	if err != nil {
		return fmt.Errorf("osext.Executable: %w", err)
	}

	args := append([]string{"--foreground"}, os.Args[1:]...)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("os.Getwd: %w", err)
	}

	env := []string{
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
		fmt.Sprintf("HOME=%s", os.Getenv("HOME")),
		fmt.Sprintf("%s=%s", util.SQLFSParentProcessDir, cwd),
		fmt.Sprintf("%s=true", sqlfsInBackgroundMode),
	}

	return daemonize.Run(path, args, env, os.Stdout)
}

// registerSIGINTHandler unmounts mountPoint on the first SIGINT, retrying
// on subsequent signals until the unmount succeeds (the file system may
// still have open handles the kernel hasn't released yet).
func registerSIGINTHandler(mountPoint string) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)

	go func() {
		for range signalChan {
			logger.Info("Received SIGINT, attempting to unmount...")
			if err := fuse.Unmount(mountPoint); err != nil {
				logger.Errorf("Failed to unmount in response to SIGINT: %v", err)
				continue
			}
			logger.Info("Successfully unmounted in response to SIGINT.")
			return
		}
	}()
}

// mountWithArgs opens the store, builds the Operations Layer server
// around it and mounts it at mountPoint.
func mountWithArgs(databasePath string, mountPoint string, config *cfg.Config) (*fuse.MountedFileSystem, error) {
	ctx := context.Background()

	if databasePath == "" {
		databasePath = string(config.Database.Path)
	}

	password := ""
	if config.Database.Encrypt {
		logger.Warn("-e/--encrypt derives a key via internal/store, but this build's " +
			"modernc.org/sqlite driver has no page-cipher extension: the database on disk " +
			"will be ordinary plaintext SQLite regardless. Do not rely on -e for data-at-rest protection.")

		var err error
		if databasePath == "" {
			// No persistent file exists to protect with a memorized password, so
			// generate one instead of prompting on a TTY that may not be there.
			password, err = generateRandomPassword()
			if err != nil {
				return nil, fmt.Errorf("generating random encryption key: %w", err)
			}
		} else {
			password, err = readPassword()
			if err != nil {
				return nil, fmt.Errorf("reading database password: %w", err)
			}
		}
	}

	clk := clock.RealClock{}
	st, err := store.Open(ctx, databasePath, password, clk)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	warnOnLowFileDescriptorLimit()

	uid, gid, err := perms.MyUserAndGroup()
	if err != nil {
		st.Close(ctx)
		return nil, fmt.Errorf("perms.MyUserAndGroup: %w", err)
	}
	if os.Geteuid() == 0 {
		logger.Warn("sqlfs is running as root, and will assign ownership of the mounted file system to the root user.")
	}
	if config.FileSystem.Uid >= 0 {
		uid = uint32(config.FileSystem.Uid)
	}
	if config.FileSystem.Gid >= 0 {
		gid = uint32(config.FileSystem.Gid)
	}

	server, err := fs.NewServer(&fs.ServerConfig{
		Store: st,
		Clock: clk,
		Uid:   uid,
		Gid:   gid,
	})
	if err != nil {
		st.Close(ctx)
		return nil, fmt.Errorf("fs.NewServer: %w", err)
	}

	mountCfg := getFuseMountConfig(config)

	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		st.Close(ctx)
		return nil, fmt.Errorf("fuse.Mount: %w", err)
	}
	return mfs, nil
}

// lowFileDescriptorLimit is the RLIMIT_NOFILE threshold below which a long-
// running mount serving many concurrently-open files and directories risks
// running out of descriptors.
const lowFileDescriptorLimit = 1024

// warnOnLowFileDescriptorLimit logs a warning if the process's open-file
// limit looks too small for sustained FUSE traffic. A failure to query the
// limit itself is silently ignored; it isn't worth failing the mount over.
func warnOnLowFileDescriptorLimit() {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return
	}
	if rlimit.Cur < lowFileDescriptorLimit {
		logger.Warnf("open file descriptor limit is low (%d); consider raising RLIMIT_NOFILE", rlimit.Cur)
	}
}

// randomPasswordLength is the character count of the key generateRandomPassword
// produces for an in-memory database opened with --encrypt and no DATABASE path.
const randomPasswordLength = 32

// randomPasswordAlphabet avoids characters a terminal or log line could mangle.
const randomPasswordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// generateRandomPassword produces a random key for an in-memory database
// opened with --encrypt: there is no persistent file to protect with a
// user-memorized password, so one is generated instead of prompted for.
func generateRandomPassword() (string, error) {
	raw := make([]byte, randomPasswordLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	out := make([]byte, randomPasswordLength)
	for i, b := range raw {
		out[i] = randomPasswordAlphabet[int(b)%len(randomPasswordAlphabet)]
	}
	return string(out), nil
}

// readPassword prompts on the controlling terminal for the database's
// encryption password, matching the key-derivation input internal/store
// expects when cfg.DatabaseConfig.Encrypt is set.
func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// getFuseMountConfig assembles the jacobsa/fuse mount options, wiring the
// configured log severity through to fuse's own request/debug loggers.
func getFuseMountConfig(config *cfg.Config) *fuse.MountConfig {
	options := map[string]string{}
	for _, o := range config.FileSystem.FuseOptions {
		mount.ParseOptions(options, o)
	}

	mountCfg := &fuse.MountConfig{
		FSName:     fsName,
		Subtype:    fsName,
		VolumeName: fsName,
		Options:    options,
	}

	if config.Logging.Severity.Rank() <= cfg.ErrorLogSeverity.Rank() {
		mountCfg.ErrorLogger = logger.NewLegacyLogger(logger.LevelError, "fuse: ", fsName)
	}
	if config.Logging.Severity.Rank() <= cfg.DebugLogSeverity.Rank() {
		mountCfg.DebugLogger = logger.NewLegacyLogger(logger.LevelDebug, "fuse_debug: ", fsName)
	}

	return mountCfg
}
