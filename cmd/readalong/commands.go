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
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"readalong/internal/config"
	"readalong/internal/display"
	"readalong/internal/export"
	"readalong/internal/follow"
	"readalong/internal/jobs"
	"readalong/internal/library"
	applog "readalong/internal/log"
	"readalong/internal/script"
	"readalong/internal/timing"
)

// app carries what every command needs.
type app struct {
	cfg     config.AppConfig
	token   string
	dataDir string
	out     io.Writer
	log     *slog.Logger
}

// document is a script with its timings, from the library or from files.
type document struct {
	JobID   string
	Title   string
	Script  string
	Timings []timing.WordTiming
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

func (a *app) client() *jobs.Client {
	return jobs.NewClient(a.cfg.Backend.BaseURL, a.token, a.cfg.Backend.Timeout())
}

func (a *app) openLibrary(ctx context.Context) (library.Store, error) {
	driver, target, err := a.cfg.LibraryTarget()
	if err != nil {
		return nil, err
	}
	return library.Open(ctx, driver, target)
}

func (a *app) followConfig() follow.Config {
	return follow.Config{
		BandRatio:        a.cfg.Follow.BandRatio,
		Cooldown:         a.cfg.Follow.Cooldown(),
		ScrollThreshold:  a.cfg.Follow.ScrollThresholdPx,
		OverlayTolerance: a.cfg.Follow.OverlayTolerancePx,
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%s: %v", fs.Name(), err)
	}
	return nil
}

// scriptBody reads a job document and returns its SCRIPT: section.
func scriptBody(p string) (string, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return script.SplitSections(string(b)).Script, nil
}

// loadDocument resolves "<job>" against the library or "<script> <timings>"
// against the filesystem.
func (a *app) loadDocument(ctx context.Context, args []string) (document, error) {
	switch len(args) {
	case 1:
		store, err := a.openLibrary(ctx)
		if err != nil {
			return document{}, err
		}
		defer func() { _ = store.Close() }()
		e, err := store.Get(ctx, args[0])
		if errors.Is(err, library.ErrNotFound) {
			return document{}, fmt.Errorf("job %s is not in the library; run fetch first", args[0])
		}
		if err != nil {
			return document{}, err
		}
		return document{JobID: e.JobID, Title: e.Title, Script: e.Script, Timings: e.Timings}, nil
	case 2:
		body, err := scriptBody(args[0])
		if err != nil {
			return document{}, err
		}
		f, err := os.Open(args[1])
		if err != nil {
			return document{}, err
		}
		defer func() { _ = f.Close() }()
		ts, err := timing.Decode(f)
		if err != nil {
			return document{}, fmt.Errorf("%s: %w", args[1], err)
		}
		title := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		return document{JobID: title, Title: title, Script: body, Timings: ts}, nil
	default:
		return document{}, usageErrorf("expected <job> or <script> <timings>")
	}
}

func (a *app) cmdRoles(args []string) error {
	if len(args) != 1 {
		return usageErrorf("roles requires <script>")
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	for _, r := range script.ExtractRoles(string(b)) {
		a.printf("%s\n", r)
	}
	return nil
}

func (a *app) cmdSubmit(ctx context.Context, args []string) error {
	fs := newFlags("submit")
	wait := fs.Bool("wait", false, "wait for the job and fetch it into the library")
	title := fs.String("title", "", "library title")
	noCache := fs.Bool("no-cache", false, "submit even when the library has a matching job")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("submit requires <script>")
	}
	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	doc := string(raw)
	roles := script.ExtractRoles(doc)
	if len(roles) == 0 {
		return fmt.Errorf("%s has no [Role] tags", fs.Arg(0))
	}
	if *title == "" {
		*title = strings.TrimSuffix(filepath.Base(fs.Arg(0)), filepath.Ext(fs.Arg(0)))
	}

	store, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	key := library.CacheKey(doc, roles, a.cfg.Backend.Model)
	if !*noCache {
		if hit, err := store.LookupCache(ctx, key); err == nil {
			a.log.Info("cache hit", slog.String("job", hit.JobID))
			a.printf("cached %s\n", hit.JobID)
			return nil
		} else if !errors.Is(err, library.ErrNotFound) {
			return err
		}
	}

	c := a.client()
	id, err := c.Submit(ctx, doc, roles)
	if err != nil {
		return err
	}
	a.printf("%s\n", id)
	if !*wait {
		return nil
	}
	st, err := c.Wait(ctx, id, a.cfg.Backend.PollInterval())
	if err != nil {
		return err
	}
	a.log.Info("job ready", slog.String("job", id), slog.String("state", string(st.State)))
	// The manifest script is what the service aligned; the local document may
	// hold untagged lines that were never synthesized.
	_, err = a.fetchInto(ctx, c, store, fetchRequest{JobID: id, Title: *title, CacheKey: key, Audio: true})
	return err
}

func (a *app) cmdStatus(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageErrorf("status requires <job>")
	}
	st, err := a.client().Status(ctx, args[0])
	if err != nil {
		return err
	}
	a.printf("%s\t%s\t%s\n", st.ID, st.State, st.Updated().Format(time.RFC3339))
	if st.Error != "" {
		a.printf("error: %s\n", st.Error)
	}
	return nil
}

type fetchRequest struct {
	JobID    string
	Title    string
	Script   string // empty means the manifest's script and roles
	Roles    []string
	CacheKey string
	Audio    bool
}

// fetchInto downloads a finished job and records it in store.
func (a *app) fetchInto(ctx context.Context, c *jobs.Client, store library.Store, req fetchRequest) (library.Entry, error) {
	l := applog.WithOperation(a.log, "fetch")
	m, err := c.Manifest(ctx, req.JobID)
	if err != nil {
		return library.Entry{}, err
	}
	if req.Script == "" {
		req.Script = script.SplitSections(m.Script).Script
		req.Roles = script.ExtractRoles(m.Script)
	}
	if req.CacheKey == "" {
		req.CacheKey = library.CacheKey(req.Script, req.Roles, a.cfg.Backend.Model)
	}

	var (
		audioPath string
		audio     *os.File
	)
	if req.Audio {
		dir := filepath.Join(a.dataDir, "audio")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return library.Entry{}, err
		}
		audioPath = filepath.Join(dir, req.JobID+audioExt(m.AudioURL))
		if audio, err = os.Create(audioPath); err != nil {
			return library.Entry{}, err
		}
	}
	var w io.Writer
	if audio != nil {
		w = audio
	}
	art, err := c.FetchArtifacts(ctx, m, w)
	if audio != nil {
		if cerr := audio.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(audioPath)
		}
	}
	if err != nil {
		return library.Entry{}, err
	}

	e := library.Entry{
		JobID:     req.JobID,
		CacheKey:  req.CacheKey,
		Title:     req.Title,
		Script:    req.Script,
		Roles:     req.Roles,
		Timings:   art.Timings,
		AudioPath: audioPath,
		CreatedAt: time.Now(),
	}
	if e.Title == "" {
		e.Title = req.JobID
	}
	if err := store.Put(ctx, e); err != nil {
		return library.Entry{}, err
	}
	if keep := a.cfg.Library.KeepLast; keep > 0 {
		if n, err := store.Prune(ctx, keep); err != nil {
			l.Warn("prune failed", slog.Any("err", err))
		} else if n > 0 {
			l.Info("library pruned", slog.Int("removed", n))
		}
	}
	l.Info("job stored", slog.String("job", e.JobID), slog.Int("words", len(e.Timings)), slog.Int64("audio_bytes", art.AudioBytes))
	a.printf("stored %s (%d words)\n", e.JobID, len(e.Timings))
	return e, nil
}

// audioExt returns the extension of the audio reference's path, ".wav" when
// it has none.
func audioExt(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	if ext := path.Ext(p); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".wav"
}

func (a *app) cmdFetch(ctx context.Context, args []string) error {
	fs := newFlags("fetch")
	title := fs.String("title", "", "library title")
	noAudio := fs.Bool("no-audio", false, "skip the audio download")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("fetch requires <job>")
	}
	store, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	_, err = a.fetchInto(ctx, a.client(), store, fetchRequest{JobID: fs.Arg(0), Title: *title, Audio: !*noAudio})
	return err
}

func (a *app) cmdBuild(ctx context.Context, args []string) error {
	doc, err := a.loadDocument(ctx, args)
	if err != nil {
		return err
	}
	res := display.Build(doc.Script, doc.Timings)
	for i, ln := range res.Lines {
		a.printf("%4d  %s\n", i, renderLine(ln, res, -1))
	}
	if res.Mismatch != nil {
		a.printf("\nmismatch: %d script tokens, %d timed words\n", res.Mismatch.TokenCount, res.Mismatch.TimingCount)
	}
	return nil
}

// renderLine writes a display line as text. Each word carries its index; the
// active word is bracketed.
func renderLine(ln display.Line, res display.Result, active int) string {
	var b strings.Builder
	if ln.Character != "" {
		b.WriteString(ln.Character)
		b.WriteString(": ")
	}
	for pi, p := range ln.Parts {
		if pi > 0 {
			b.WriteByte(' ')
		}
		switch p := p.(type) {
		case display.CueSpan:
			b.WriteString("(" + p.Display + ")")
		case display.TextSpan:
			for k, tok := range p.Tokens {
				if k > 0 {
					b.WriteByte(' ')
				}
				idx := p.StartIndex + k
				switch {
				case idx == active:
					fmt.Fprintf(&b, "[%s]", tok)
				case active < 0:
					fmt.Fprintf(&b, "%s·%d", tok, idx)
				default:
					b.WriteString(tok)
				}
			}
		}
	}
	return b.String()
}

func (a *app) cmdCheck(ctx context.Context, args []string) error {
	fs := newFlags("check")
	limit := fs.Int("limit", 20, "maximum divergences to list")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	doc, err := a.loadDocument(ctx, fs.Args())
	if err != nil {
		return err
	}
	rep := display.Audit(display.Build(doc.Script, doc.Timings), *limit)
	a.printf("compared %d, divergent %d, agreement %.1f%%\n", rep.Compared, rep.Divergent, rep.Ratio()*100)
	if rep.Mismatch != nil {
		a.printf("count mismatch: %d script tokens, %d timed words\n", rep.Mismatch.TokenCount, rep.Mismatch.TimingCount)
	}
	for _, d := range rep.Divergences {
		a.printf("  %5d  %-20q %-20q %.2f\n", d.Index, d.Token, d.Timed, d.Similarity)
	}
	if rep.Divergent > 0 || rep.Mismatch != nil {
		return errSilent
	}
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErrorf("export requires a format")
	}
	format := args[0]
	fs := newFlags("export")
	out := fs.String("out", "", "output file, or directory for batch")
	title := fs.String("title", "", "document title")
	preset := fs.String("preset", "", "batch preset: web or print")
	formats := fs.String("formats", "", "comma separated batch formats: pdf,vtt,srt,timings")
	stamps := fs.Bool("timestamps", false, "pdf: print line start times")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}
	doc, err := a.loadDocument(ctx, fs.Args())
	if err != nil {
		return err
	}
	if *title == "" {
		*title = doc.Title
	}
	res := display.Build(doc.Script, doc.Timings)

	if *out == "" {
		*out = doc.JobID
		if format != "batch" {
			*out += "." + format
		}
	}
	switch format {
	case "pdf":
		err = export.TranscriptPDF(res, *title, *out, export.PDFOptions{Timestamps: *stamps})
	case "vtt", "srt":
		err = writeTo(*out, func(w io.Writer) error {
			if format == "vtt" {
				return export.WebVTT(w, res)
			}
			return export.SRT(w, res)
		})
	case "batch":
		var fl []string
		if *formats != "" {
			fl = strings.Split(*formats, ",")
		}
		var written []string
		written, err = export.Batch(res, export.BatchOptions{
			Preset:  export.PresetName(*preset),
			Formats: fl,
			OutDir:  *out,
			Base:    doc.JobID,
			Title:   *title,
			Timings: doc.Timings,
		})
		for _, p := range written {
			a.printf("%s\n", p)
		}
		return err
	default:
		return usageErrorf("unknown export format %q", format)
	}
	if err != nil {
		return err
	}
	a.printf("%s\n", *out)
	return nil
}

func writeTo(p string, fn func(io.Writer) error) error {
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (a *app) cmdLibrary(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErrorf("library requires list, show or prune")
	}
	store, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	switch args[0] {
	case "list":
		fs := newFlags("library list")
		n := fs.Int("n", 20, "number of entries, 0 for all")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		es, err := store.List(ctx, *n)
		if err != nil {
			return err
		}
		for _, e := range es {
			a.printf("%s\t%s\t%d words\t%s\n", e.JobID, e.CreatedAt.Format("2006-01-02 15:04"), len(e.Timings), e.Title)
		}
	case "show":
		if len(args) != 2 {
			return usageErrorf("library show requires <job>")
		}
		e, err := store.Get(ctx, args[1])
		if err != nil {
			return err
		}
		a.printf("job:     %s\ntitle:   %s\nroles:   %s\nwords:   %d\naudio:   %s\ncreated: %s\nkey:     %s\n",
			e.JobID, e.Title, strings.Join(e.Roles, ", "), len(e.Timings), e.AudioPath, e.CreatedAt.Format(time.RFC3339), e.CacheKey)
	case "prune":
		fs := newFlags("library prune")
		keep := fs.Int("keep", a.cfg.Library.KeepLast, "entries to keep")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		n, err := store.Prune(ctx, *keep)
		if err != nil {
			return err
		}
		a.printf("removed %d\n", n)
	default:
		return usageErrorf("unknown library command %q", args[0])
	}
	return nil
}

func (a *app) cmdConfig(args []string) error {
	if len(args) == 0 {
		return usageErrorf("config requires a subcommand")
	}
	switch args[0] {
	case "path":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		a.printf("%s\n", p)
	case "show":
		b, err := yaml.Marshal(a.cfg)
		if err != nil {
			return err
		}
		a.printf("%s", b)
		for _, k := range []string{"backend.base_url", "backend.model", "library.driver", "library.path", "logging.level"} {
			if env, ok := config.EnvOverrideFor(k); ok {
				a.printf("# %s overridden by %s\n", k, env)
			}
		}
		if a.token != "" {
			a.printf("# backend token present in keyring\n")
		}
	case "init":
		if err := config.Save(config.Defaults(), ""); err != nil {
			return err
		}
		p, _ := config.ConfigPath()
		a.printf("wrote %s\n", p)
	case "set-token":
		if len(args) != 2 {
			return usageErrorf("config set-token requires <token>")
		}
		return config.SetToken(args[1])
	case "clear-token":
		return config.ClearToken()
	default:
		return usageErrorf("unknown config command %q", args[0])
	}
	return nil
}
