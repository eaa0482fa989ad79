// Package edit is the CMS edit session: a debounced, presence-tracked
// websocket view onto one draft episode version. Grounded on
// `original_source/src/catbox/games/only_connect/cms.py`'s
// OnlyConnectEditRoom/OnlyConnectEditEndpoint, generalised from that
// Only-Connect-specific room into a game-agnostic one driven entirely
// through content.Content, since every engine's CMS needs the same
// shadow-copy, debounce, and presence behaviour.
package edit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/content"
	"github.com/benharcourt/catbox-quiz/internal/metrics"
	"github.com/benharcourt/catbox-quiz/internal/room"
)

// saveDebounce is how long an edit session waits after the last change
// before persisting, mirroring cms.py's `save_timer = loop.time() + 3`.
const saveDebounce = 3 * time.Second

// Persister is the durable-storage surface an edit session needs. The
// engine facade that constructs a Room supplies the implementation, so this
// package never depends on internal/engine or internal/store directly.
type Persister interface {
	SaveDraft(ctx context.Context, c content.Content, title, description string) error
	Submit(ctx context.Context) error
}

// section names the four independently enable/disable-able round blocks a
// CMS session edits, mirroring cms.py's section argument.
type section string

const (
	sectionConnections     section = "connections"
	sectionCompletions     section = "completions"
	sectionConnectingWalls section = "connecting_walls"
	sectionConnectingWall0 section = "wall0"
	sectionConnectingWall1 section = "wall1"
	sectionMissingVowels   section = "missing_vowels"
)

type editingEntry struct {
	username string
	position string
}

// Room is the edit-session state a room.Room holds in its State field.
// Every field below is only ever touched from inside a room.Mutate
// callback, except the save-debounce bookkeeping which has its own lock
// since the timer callback runs outside the room's command dispatch.
type Room struct {
	Episode     content.Content
	Title       string
	Description string

	// shadow starts as the initial content with every disabled section
	// defaulted in -- the "episode but enabled" helper: disable_section
	// stores the section's current contents into it and enable_section
	// copies them back out, so toggling a section off and back on never
	// loses what was there.
	shadow content.Content

	persist Persister
	logger  *zap.Logger

	editing map[string]editingEntry // socket id -> who/where

	saveMu    sync.Mutex
	saveTimer *time.Timer
	dirty     bool
}

// NewRoom builds an edit session wrapping a freshly created room.Room: a
// single "edit" endpoint, host-admin, with the full CMS command surface.
func NewRoom(r *room.Room, logger *zap.Logger, initial content.Content, title, description string, persist Persister) *room.Endpoint {
	er := &Room{
		Episode:     initial,
		Title:       title,
		Description: description,
		shadow:      shadowOf(initial),
		persist:     persist,
		logger:      logger,
		editing:     make(map[string]editingEntry),
	}
	r.State = er

	ep := r.AddEndpoint("edit", r.Code, true)
	r.SetStartingEndpoint("edit")

	view := func(admin bool) any {
		return map[string]any{
			"cmd":      "update",
			"episode":  er.json(),
			"editing":  er.editingJSON(),
		}
	}
	ep.OnJoin(func(ctx context.Context, s *room.Socket) any { return view(true) })
	ep.SetView(view)
	ep.OnLeave(func(s *room.Socket) { er.handleDisconnect(r, s.ID) })

	ep.HandleHost("announce_editing", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		return er.handleAnnounceEditing(r, ctx, s, args)
	})
	ep.HandleHost("enable_section", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		return er.handleEnableSection(r, ctx, s, args)
	})
	ep.HandleHost("disable_section", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		return er.handleDisableSection(r, ctx, s, args)
	})
	ep.HandleHost("update", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		return er.handleUpdate(r, ctx, s, args)
	})
	ep.HandleHost("set_meta", func(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
		return er.handleSetMeta(r, ctx, s, args)
	})
	ep.HandleHost("submit", er.handleSubmit)

	return ep
}

// shadowOf returns a copy of c with every nil round section replaced by its
// zero-value default, mirroring FullEpisodeHelper's lazy `or default()`.
func shadowOf(c content.Content) content.Content {
	shadow := c
	if shadow.ConnectionsRound == nil {
		blank := content.DefaultSixQuestions()
		shadow.ConnectionsRound = &blank
	}
	if shadow.CompletionsRound == nil {
		blank := content.DefaultSixQuestions()
		shadow.CompletionsRound = &blank
	}
	if shadow.ConnectingWalls == nil {
		blank := content.WallPair{content.DefaultConnectingWall(), content.DefaultConnectingWall()}
		shadow.ConnectingWalls = &blank
	}
	if shadow.MissingVowels == nil {
		shadow.MissingVowels = []content.VowelGroup{}
	}
	return shadow
}

func (er *Room) json() map[string]any {
	out := er.Episode.Json()
	out["title"] = er.Title
	out["description"] = er.Description
	return out
}

func (er *Room) editingJSON() []map[string]any {
	positions := make([]map[string]any, 0, len(er.editing))
	for socketID, e := range er.editing {
		positions = append(positions, map[string]any{
			"session":  socketID,
			"username": e.username,
			"position": e.position,
		})
	}
	return positions
}

func (er *Room) handleAnnounceEditing(r *room.Room, ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
	position, _ := args["position"].(string)
	username := ""
	if s.Session != nil {
		username = s.Session.Username
	}

	r.Mutate(func() bool {
		if position == "" {
			delete(er.editing, s.ID)
		} else {
			er.editing[s.ID] = editingEntry{username: username, position: position}
		}
		return true
	})
	return nil, nil
}

func (er *Room) handleEnableSection(r *room.Room, ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
	name, _ := args["section"].(string)
	changed := false
	r.Mutate(func() bool {
		changed = er.setSectionEnabled(section(name), true)
		return changed
	})
	if changed {
		er.queueSave(ctx)
	}
	return nil, nil
}

func (er *Room) handleDisableSection(r *room.Room, ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
	name, _ := args["section"].(string)
	changed := false
	r.Mutate(func() bool {
		changed = er.setSectionEnabled(section(name), false)
		return changed
	})
	if changed {
		er.queueSave(ctx)
	}
	return nil, nil
}

// setSectionEnabled copies between Episode and shadow for the named
// section, mirroring cms.py's enable_section/disable_section. Unknown
// section names are rejected rather than silently ignored.
func (er *Room) setSectionEnabled(sec section, enabled bool) bool {
	switch sec {
	case sectionConnections:
		if enabled {
			q := *er.shadow.ConnectionsRound
			er.Episode.ConnectionsRound = &q
		} else {
			if er.Episode.ConnectionsRound != nil {
				er.shadow.ConnectionsRound = er.Episode.ConnectionsRound
			}
			er.Episode.ConnectionsRound = nil
		}
		return true
	case sectionCompletions:
		if enabled {
			q := *er.shadow.CompletionsRound
			er.Episode.CompletionsRound = &q
		} else {
			if er.Episode.CompletionsRound != nil {
				er.shadow.CompletionsRound = er.Episode.CompletionsRound
			}
			er.Episode.CompletionsRound = nil
		}
		return true
	case sectionConnectingWalls:
		if enabled {
			walls := *er.shadow.ConnectingWalls
			er.Episode.ConnectingWalls = &walls
		} else {
			if er.Episode.ConnectingWalls != nil {
				er.shadow.ConnectingWalls = er.Episode.ConnectingWalls
			}
			er.Episode.ConnectingWalls = nil
		}
		return true
	case sectionMissingVowels:
		if enabled {
			er.Episode.MissingVowels = append([]content.VowelGroup{}, er.shadow.MissingVowels...)
		} else {
			if er.Episode.MissingVowels != nil {
				er.shadow.MissingVowels = er.Episode.MissingVowels
			}
			er.Episode.MissingVowels = nil
		}
		return true
	default:
		return false
	}
}

// handleUpdate applies one field edit, mirroring cms.py's update command:
// section selects which block, question/element index into it, value is the
// new text (or, when prefixed "blob::", a reference to an uploaded image).
func (er *Room) handleUpdate(r *room.Room, ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
	sec := section(fmt.Sprint(args["section"]))
	questionStr := fmt.Sprint(args["question"])
	elementField := fmt.Sprint(args["element"])
	value, _ := args["value"].(string)

	var applyErr error
	r.Mutate(func() bool {
		applyErr = er.applyUpdate(sec, questionStr, elementField, value)
		return applyErr == nil
	})
	if applyErr != nil {
		return nil, applyErr
	}
	er.queueSave(ctx)
	return nil, nil
}

func (er *Room) applyUpdate(sec section, questionStr, elementField, value string) error {
	switch sec {
	case sectionConnections:
		return er.updateSixQuestions(er.Episode.ConnectionsRound, questionStr, elementField, value)
	case sectionCompletions:
		return er.updateSixQuestions(er.Episode.CompletionsRound, questionStr, elementField, value)
	case sectionConnectingWall0:
		return er.updateWall(0, questionStr, elementField, value)
	case sectionConnectingWall1:
		return er.updateWall(1, questionStr, elementField, value)
	default:
		return fmt.Errorf("unknown section %q", sec)
	}
}

func (er *Room) updateSixQuestions(qs *content.SixQuestions, questionStr, elementField, value string) error {
	if qs == nil {
		return fmt.Errorf("section is disabled")
	}
	idx, err := rangeNumber(questionStr, 0, len(qs))
	if err != nil {
		return err
	}
	return applyField(&qs[idx], elementField, value)
}

func (er *Room) updateWall(which int, questionStr, elementField, value string) error {
	if er.Episode.ConnectingWalls == nil {
		return fmt.Errorf("section is disabled")
	}
	wall := &er.Episode.ConnectingWalls[which]
	idx, err := rangeNumber(questionStr, 0, len(wall))
	if err != nil {
		return err
	}
	return applyField(&wall[idx], elementField, value)
}

// applyField mirrors `_update_basic_round`: "connection" and "details" are
// free text, everything else is an element index 0-3.
func applyField(q *content.Question, field, value string) error {
	switch field {
	case "connection":
		q.Connection = value
		return nil
	case "details":
		q.Details = value
		return nil
	default:
		idx, err := rangeNumber(field, 0, len(q.Elements))
		if err != nil {
			return err
		}
		q.Elements[idx] = elementFromValue(value)
		return nil
	}
}

// elementFromValue stores a "blob::<id>" value as a media reference and
// everything else as text, per spec.md's element-encoding rule.
func elementFromValue(value string) content.Element {
	const blobPrefix = "blob::"
	if len(value) > len(blobPrefix) && value[:len(blobPrefix)] == blobPrefix {
		return content.NewMediaElement(value[len(blobPrefix):])
	}
	return content.NewTextElement(value)
}

// rangeNumber mirrors cms.py's range_number: parses an integer and rejects
// it out of band, [min, max).
func rangeNumber(s string, min, max int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	if n < min || n >= max {
		return 0, fmt.Errorf("index %d out of range [%d, %d)", n, min, max)
	}
	return n, nil
}

func (er *Room) handleSetMeta(r *room.Room, ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
	title, hasTitle := args["title"].(string)
	description, hasDescription := args["description"].(string)

	r.Mutate(func() bool {
		if hasTitle {
			er.Title = title
		}
		if hasDescription {
			er.Description = description
		}
		return hasTitle || hasDescription
	})
	if hasTitle || hasDescription {
		er.queueSave(ctx)
	}
	return nil, nil
}

// handleSubmit flushes any pending save and transitions the draft to
// PENDING_REVIEW. There is no dedicated HTTP surface for this in scope
// (spec.md's route table excludes /cms entirely), so submission is a
// command on the edit session itself.
func (er *Room) handleSubmit(ctx context.Context, s *room.Socket, args map[string]any) (any, error) {
	er.cancelPendingSave()
	if err := er.persist.SaveDraft(ctx, er.Episode, er.Title, er.Description); err != nil {
		return nil, fmt.Errorf("save before submit: %w", err)
	}
	if err := er.persist.Submit(ctx); err != nil {
		metrics.EditSavesTotal.WithLabelValues("submit_failed").Inc()
		return nil, err
	}
	metrics.EditSavesTotal.WithLabelValues("submitted").Inc()
	return map[string]any{"cmd": "submitted"}, nil
}

func (er *Room) queueSave(ctx context.Context) {
	er.saveMu.Lock()
	defer er.saveMu.Unlock()
	er.dirty = true
	if er.saveTimer != nil {
		er.saveTimer.Reset(saveDebounce)
		return
	}
	er.saveTimer = time.AfterFunc(saveDebounce, func() { er.flush(ctx) })
}

func (er *Room) cancelPendingSave() {
	er.saveMu.Lock()
	defer er.saveMu.Unlock()
	if er.saveTimer != nil {
		er.saveTimer.Stop()
		er.saveTimer = nil
	}
	er.dirty = false
}

func (er *Room) flush(ctx context.Context) {
	er.saveMu.Lock()
	er.saveTimer = nil
	wasDirty := er.dirty
	er.dirty = false
	er.saveMu.Unlock()
	if !wasDirty {
		return
	}

	if err := er.persist.SaveDraft(ctx, er.Episode, er.Title, er.Description); err != nil {
		er.logger.Error("save draft failed", zap.Error(err))
		metrics.EditSavesTotal.WithLabelValues("failed").Inc()
		return
	}
	metrics.EditSavesTotal.WithLabelValues("saved").Inc()
}

// handleDisconnect clears a departed socket's editing-position entry and
// fans out the change, mirroring cms.py's on_close.
func (er *Room) handleDisconnect(r *room.Room, socketID string) {
	r.Mutate(func() bool {
		if _, ok := er.editing[socketID]; !ok {
			return false
		}
		delete(er.editing, socketID)
		return true
	})
}
