package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/talismans/server/internal/engine"
	"github.com/talismans/server/internal/talisman"
	"github.com/talismans/server/internal/world"
)

var replayCmd = &cobra.Command{
	Use:   "replay <events.yml>",
	Short: "Feed a list of host events through the engine and print the resulting modifiers",
	Long: `Replays host events from a YAML file against a fresh in-process host:

  - {op: join,  player: p1, world: world}
  - {op: give,  player: p1, slot: 0, talisman: vitality, level: 2}
  - {op: clear, player: p1, slot: 0}
  - {op: move,  player: p1, world: arena}
  - {op: quit,  player: p1}

Each event runs in its own dispatch turn. The effect journal and the file
watcher are not started.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

type replayEvent struct {
	Op       string `yaml:"op"`
	Player   string `yaml:"player"`
	World    string `yaml:"world"`
	Slot     int    `yaml:"slot"`
	Talisman string `yaml:"talisman"`
	Level    int    `yaml:"level"`
}

var errUnknownOp = errors.New("unknown replay op")

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var events []replayEvent
	if err := yaml.Unmarshal(raw, &events); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	cfg.Journal.Enabled = false
	cfg.Reload.Watch = false
	eng, err := engine.New(cmd.Context(), engine.Options{Config: cfg, Log: log})
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := replay(eng, events); err != nil {
		return err
	}
	return printModifiers(cmd.OutOrStdout(), eng)
}

// replay applies events in order, one dispatch turn each.
func replay(eng *engine.Engine, events []replayEvent) error {
	state := eng.State()
	for i, ev := range events {
		if ev.Player == "" {
			return fmt.Errorf("event %d: player is required", i)
		}
		p, online := state.Player(ev.Player)
		if !online && ev.Op != "join" {
			return fmt.Errorf("event %d: player %s is not online", i, ev.Player)
		}

		switch ev.Op {
		case "join":
			if online {
				return fmt.Errorf("event %d: player %s already online", i, ev.Player)
			}
			worldName := ev.World
			if worldName == "" {
				worldName = "world"
			}
			state.AddPlayer(world.NewPlayer(ev.Player, ev.Player, worldName))
			eng.PlayerJoined(ev.Player, worldName)

		case "give", "clear":
			var item *world.ItemStack
			if ev.Op == "give" {
				tal, ok := eng.Registry().Get(ev.Talisman)
				if !ok {
					return fmt.Errorf("event %d: unknown talisman %q", i, ev.Talisman)
				}
				lvl, ok := tal.Level(ev.Level)
				if !ok {
					return fmt.Errorf("event %d: %s has no level %d", i, ev.Talisman, ev.Level)
				}
				item = talisman.NewItem(lvl, ev.Player)
			}
			slot := world.Slot(ev.Slot)
			if !slot.Valid() {
				return fmt.Errorf("event %d: invalid slot %d", i, ev.Slot)
			}
			old := p.Inv.Set(slot, item)
			eng.InventoryChanged(ev.Player, slot, old, item)

		case "move":
			from := p.World
			p.World = ev.World
			eng.WorldChanged(ev.Player, from, ev.World)

		case "quit":
			eng.PlayerQuit(ev.Player)
			eng.Dispatch()
			state.RemovePlayer(ev.Player)
			continue

		default:
			return fmt.Errorf("event %d: %w %q", i, errUnknownOp, ev.Op)
		}
		eng.Dispatch()
	}
	return nil
}

// printModifiers writes every online player's modified attributes.
func printModifiers(w io.Writer, eng *engine.Engine) error {
	var err error
	eng.State().AllPlayers(func(p *world.PlayerInfo) {
		for _, key := range p.AttributeKeys() {
			attr := p.Attribute(key)
			mods := attr.Modifiers()
			if len(mods) == 0 || err != nil {
				continue
			}
			_, err = fmt.Fprintf(w, "%s %s = %.4g\n", p.ID, key, attr.Value())
			for _, m := range mods {
				name := m.Name
				if lvl, ok := eng.Registry().LevelByUUID(m.UUID); ok {
					name = lvl.Key()
				}
				_, err = fmt.Fprintf(w, "  %s %+g %s\n", name, m.Amount, m.Operation)
			}
		}
	})
	return err
}
