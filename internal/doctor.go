package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/starford/noteban/internal/apperr"
	"github.com/starford/noteban/internal/cache"
	"github.com/starford/noteban/internal/profiles"
	"github.com/starford/noteban/internal/storage"
)

// RunDoctor checks the local setup and prints a human-readable report:
// profile store, active profile's notes directory, its parse cache, and
// the tag suggestion backend when enabled. Exits non-zero when any check
// fails.
func RunDoctor(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	title := color.New(color.Bold, color.Underline)
	_, _ = title.Println("noteban doctor")
	fmt.Println()

	r := newReport()
	// Doctor output is for humans; structured logs would only interleave.
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ps, active := checkProfiles(cfg, log, r)
	if active != nil {
		checkNotesDir(active, r)
		checkParseCache(ps, active, r)
	}
	checkAIBackend(ctx, cfg, r)

	return r.done()
}

func checkProfiles(cfg *Config, log *slog.Logger, r *report) (*profiles.Store, *profiles.Profile) {
	dir := cfg.Profiles.Dir
	if dir == "" {
		var err error
		dir, err = profiles.DefaultDir()
		if err != nil {
			r.fail("profile store", err)
			return nil, nil
		}
	}

	ps, err := profiles.Open(dir, log)
	if err != nil {
		r.fail("profile store", err)
		return nil, nil
	}
	list, err := ps.List()
	if err != nil {
		r.fail("profile store", err)
		return nil, nil
	}

	active, err := ps.Active()
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		r.pass("profile store", fmt.Sprintf("%s (%d profiles, none active yet)", dir, len(list)))
		r.skip("notes dir", "a default profile is created on first serve")
		return ps, nil
	case err != nil:
		r.fail("profile store", err)
		return ps, nil
	}

	r.pass("profile store", fmt.Sprintf("%s (%d profiles, active %s)", dir, len(list), active.Name))
	return ps, active
}

func checkNotesDir(p *profiles.Profile, r *report) {
	if _, err := os.Stat(p.NotesDir); err != nil {
		r.fail("notes dir", err)
		return
	}
	store, err := storage.NewFS(p.NotesDir)
	if err != nil {
		r.fail("notes dir", err)
		return
	}
	metas, err := store.List("")
	if err != nil {
		r.fail("notes dir", err)
		return
	}
	r.pass("notes dir", fmt.Sprintf("%s (%d notes)", p.NotesDir, len(metas)))
}

func checkParseCache(ps *profiles.Store, p *profiles.Profile, r *report) {
	path, err := ps.CachePath(p.ID)
	if err != nil {
		r.fail("parse cache", err)
		return
	}
	db, err := cache.Open(path)
	if err != nil {
		r.fail("parse cache", err)
		return
	}
	defer db.Close()
	ok, err := db.VerifyIntegrity()
	if err != nil {
		r.fail("parse cache", err)
		return
	}
	if !ok {
		r.fail("parse cache", fmt.Errorf("%s failed integrity check, run `noteban resync`", path))
		return
	}
	rows, err := db.All()
	if err != nil {
		r.fail("parse cache", err)
		return
	}
	r.pass("parse cache", fmt.Sprintf("%s (%d notes cached)", path, len(rows)))
}

func checkAIBackend(ctx context.Context, cfg *Config, r *report) {
	if !cfg.AI.Enabled {
		r.skip("ai backend", "tag suggestions disabled")
		return
	}

	base := strings.TrimSuffix(cfg.AI.BaseURL, "/")
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		r.fail("ai backend", err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		r.fail("ai backend", fmt.Errorf("%s unreachable: %w", base, err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.fail("ai backend", fmt.Errorf("%s returned %s", base, resp.Status))
		return
	}

	var listing struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		r.fail("ai backend", fmt.Errorf("parse model listing: %w", err))
		return
	}
	for _, m := range listing.Models {
		if m.Name == cfg.AI.Model || strings.HasPrefix(m.Name, cfg.AI.Model+":") {
			r.pass("ai backend", fmt.Sprintf("%s (%s installed)", base, cfg.AI.Model))
			return
		}
	}
	r.fail("ai backend", fmt.Errorf("model %s not installed, run `ollama pull %s`", cfg.AI.Model, cfg.AI.Model))
}

type report struct {
	ok       *color.Color
	bad      *color.Color
	dim      *color.Color
	problems int
}

func newReport() *report {
	return &report{
		ok:  color.New(color.FgGreen),
		bad: color.New(color.FgRed, color.Bold),
		dim: color.New(color.Faint),
	}
}

func (r *report) pass(name, detail string) {
	fmt.Printf("  %-15s", name)
	_, _ = r.ok.Print("ok       ")
	_, _ = r.dim.Println(detail)
}

func (r *report) skip(name, detail string) {
	fmt.Printf("  %-15s", name)
	_, _ = r.dim.Print("off      ")
	_, _ = r.dim.Println(detail)
}

func (r *report) fail(name string, err error) {
	r.problems++
	fmt.Printf("  %-15s", name)
	_, _ = r.bad.Print("problem  ")
	_, _ = r.dim.Println(err.Error())
}

func (r *report) done() error {
	fmt.Println()
	if r.problems == 0 {
		_, _ = r.ok.Println("no problems found")
		return nil
	}
	_, _ = r.bad.Printf("%d problem(s) found\n", r.problems)
	return fmt.Errorf("doctor found %d problem(s)", r.problems)
}
