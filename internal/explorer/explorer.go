// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package explorer is the in-memory hierarchical glob explorer:
// given a source and a user-typed glob pattern, it presents an
// interactive view backed by the folder cache, with O(1) drilldown and
// a debounced LIKE-prefiltered preview for narrowing. The interactive
// TUI shell driving key input is an external collaborator; this
// package only holds navigation state and produces view data for it
// to render.
package explorer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/casparianflow/flow/internal/repository"
	"github.com/casparianflow/flow/pkg/lrucache"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"
)

type stackEntry struct {
	prefix  string
	pattern string
}

// previewCacheMemory bounds the shared preview cache across all
// Explorer sessions in the process; entries are small (a slice of
// path strings) so this is sized in entry count, not bytes.
const previewCacheMemory = 4096

// previewCacheTTL is short: long enough to absorb the handful of
// re-renders a debounced keystroke or a back-navigation triggers
// against an unchanged pattern, short enough that a rescan's effect on
// the preview shows up promptly.
const previewCacheTTL = 2 * time.Second

var previewCache = lrucache.New(previewCacheMemory)

// previewQueryRate bounds how often a single Explorer session will
// actually issue a PreviewByLikePattern query as the user types a
// pattern; keystrokes faster than this reuse the last rendered preview
// instead of hitting the DAO on every rune.
const previewQueryRate = 8 // per second

// Explorer holds one browse session's navigation state: current
// prefix, current pattern, and the back-stack of prior (prefix,
// pattern) pairs.
type Explorer struct {
	repo      *repository.Repository
	sourceID  int64
	prefix    string
	pattern   string
	back      []stackEntry
	limiter   *rate.Limiter
	lastView  View
	haveFirst bool
}

func New(repo *repository.Repository, sourceID int64) *Explorer {
	return &Explorer{
		repo: repo, sourceID: sourceID, prefix: "", pattern: "*",
		limiter: rate.NewLimiter(rate.Limit(previewQueryRate), 1),
	}
}

func (e *Explorer) Prefix() string  { return e.prefix }
func (e *Explorer) Pattern() string { return e.pattern }

// SetPattern applies a (debounced, by the caller) pattern edit. It
// does not trigger a re-scan — View's caller re-reads the DAO's
// LIKE-prefiltered preview on the next call.
func (e *Explorer) SetPattern(pattern string) {
	e.pattern = pattern
}

// isNarrowing reports whether the current pattern narrows the view
// beyond a plain folder browse.
func (e *Explorer) isNarrowing() bool {
	return e.pattern != "" && e.pattern != "*"
}

// View returns either a hierarchical folder listing (pattern is empty
// or "*") or a flat, LIKE-prefiltered preview of up to 100 candidate
// relative paths (any other pattern).
type View struct {
	Folders []repository.FolderEntry
	Preview []string
}

func (e *Explorer) View(ctx context.Context) (View, error) {
	if !e.isNarrowing() {
		folders, err := e.repo.ListFolderContents(ctx, e.sourceID, e.prefix)
		if err != nil {
			return View{}, err
		}
		return View{Folders: folders}, nil
	}

	like := repository.GlobToLike(joinPrefixPattern(e.prefix, e.pattern))
	cacheKey := fmt.Sprintf("%d\x1f%x", e.sourceID, xxhash.Sum64String(like))

	if e.haveFirst && !e.limiter.Allow() {
		return e.lastView, nil
	}

	var queryErr error
	cached := previewCache.Get(cacheKey, func() (interface{}, time.Duration, int) {
		preview, err := e.repo.PreviewByLikePattern(ctx, e.sourceID, like)
		if err != nil {
			queryErr = err
			return []string(nil), 0, 0
		}
		return preview, previewCacheTTL, 1
	})
	if queryErr != nil {
		return View{}, queryErr
	}
	e.lastView = View{Preview: cached.([]string)}
	e.haveFirst = true
	return e.lastView, nil
}

func joinPrefixPattern(prefix, pattern string) string {
	if prefix == "" {
		return pattern
	}
	return prefix + "/" + pattern
}

// DrillDown descends into entry, pushing the current (prefix, pattern)
// onto the back-stack first. Two distinct behaviors:
//   - a "**/"-prefixed pattern's preview results carry a full relative
//     path in entry.Name (not just an immediate child name), so the
//     prefix is rewritten to that full path and "**/" is stripped from
//     the pattern;
//   - otherwise entry.Name is an immediate child name, appended to the
//     current prefix as usual.
func (e *Explorer) DrillDown(entry repository.FolderEntry) error {
	if !entry.IsFolder {
		return errNotAFolder
	}
	e.back = append(e.back, stackEntry{prefix: e.prefix, pattern: e.pattern})

	if strings.HasPrefix(e.pattern, "**/") {
		e.prefix = entry.Name
		e.pattern = strings.TrimPrefix(e.pattern, "**/")
		return nil
	}

	if e.prefix == "" {
		e.prefix = entry.Name
	} else {
		e.prefix = e.prefix + "/" + entry.Name
	}
	return nil
}

// Back pops the most recent (prefix, pattern) pair, returning false if
// the back-stack is empty.
func (e *Explorer) Back() bool {
	if len(e.back) == 0 {
		return false
	}
	top := e.back[len(e.back)-1]
	e.back = e.back[:len(e.back)-1]
	e.prefix, e.pattern = top.prefix, top.pattern
	return true
}

// Backspace handles the empty-pattern-at-non-root edge case:
// backspacing an already-empty pattern at a non-root prefix pops one
// prefix segment and restores the pattern to "*", rather than doing
// nothing. Backspacing a non-empty pattern just trims its last rune.
func (e *Explorer) Backspace() {
	if e.pattern == "" && e.prefix != "" {
		if idx := strings.LastIndex(e.prefix, "/"); idx >= 0 {
			e.prefix = e.prefix[:idx]
		} else {
			e.prefix = ""
		}
		e.pattern = "*"
		return
	}
	if e.pattern != "" {
		runes := []rune(e.pattern)
		e.pattern = string(runes[:len(runes)-1])
	}
}

type explorerError string

func (e explorerError) Error() string { return string(e) }

const errNotAFolder = explorerError("selected entry is not a folder")
