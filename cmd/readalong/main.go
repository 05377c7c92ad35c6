/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"readalong/internal/config"
	"readalong/internal/crash"
	applog "readalong/internal/log"
	"readalong/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `readalong %s

Usage:
  readalong version|-v|--version               Show version
  readalong roles <script>                     List the normalized roles a script uses
  readalong submit [-wait] [-title T] <script> Submit a script for synthesis
  readalong status <job>                       Show a job's state
  readalong fetch [-title T] [-no-audio] <job> Download a finished job into the library
  readalong build <job> | <script> <timings>   Print display lines with word indexes
  readalong check [-limit N] <job> | <script> <timings>
                                               Compare script tokens against timed words
  readalong play [flags] <job> | <script> <timings>
                                               Simulate playback with auto-follow
  readalong export pdf|vtt|srt|batch [flags] <job> | <script> <timings>
  readalong library list [-n N] | show <job> | prune [-keep N]
  readalong config path|show|init|set-token <token>|clear-token
`, version.String())
}

// usageError makes run print usage and exit 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usageErrorf(format string, a ...any) error { return usageError{fmt.Sprintf(format, a...)} }

// errSilent signals a non-zero exit whose reason was already printed.
var errSilent = errors.New("exit 1")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, token, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config file ignored", slog.Any("err", cfgErr))
	}
	dataDir, _ := config.DataDir()
	defer crash.Recover(dataDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, token: token, dataDir: dataDir, out: os.Stdout, log: l}
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(os.Stdout)
		return 2
	}

	var err error
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(a.out, "readalong", version.String())
		return 0
	case "help", "-h", "--help":
		usage(os.Stdout)
		return 0
	case "roles":
		err = a.cmdRoles(args[1:])
	case "submit":
		err = a.cmdSubmit(ctx, args[1:])
	case "status":
		err = a.cmdStatus(ctx, args[1:])
	case "fetch":
		err = a.cmdFetch(ctx, args[1:])
	case "build":
		err = a.cmdBuild(ctx, args[1:])
	case "check":
		err = a.cmdCheck(ctx, args[1:])
	case "play":
		err = a.cmdPlay(ctx, args[1:])
	case "export":
		err = a.cmdExport(ctx, args[1:])
	case "library":
		err = a.cmdLibrary(ctx, args[1:])
	case "config":
		err = a.cmdConfig(args[1:])
	default:
		err = usageErrorf("unknown command %q", args[0])
	}

	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		_, _ = fmt.Fprintln(os.Stderr, "Error:", ue.msg)
		usage(os.Stderr)
		return 2
	case errors.Is(err, errSilent):
		return 1
	default:
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
}
