package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talismans/server/internal/data"
	"github.com/talismans/server/internal/scripting"
	"github.com/talismans/server/internal/talisman"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Bring every talisman document in line with the bundled schema",
	Long: `Extracts missing bundled documents into server.data_dir, adds keys the schema
gained, drops keys it lost, and keeps every user value. Documents that cannot be
parsed are left untouched and reported.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	lua, err := scripting.NewEngine(cfg.Server.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer lua.Close()

	reg := talisman.NewRegistry(cfg.Server.DataDir, data.Bundled(), lua, log)
	for _, d := range talisman.Builtins() {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	report, err := reg.Reload(cmd.Context())
	if err != nil {
		return err
	}

	printSection("設定同步")
	printStat("已載入", len(report.Loaded))
	printStat("已更新", len(report.Changed))
	printStat("使用預設值", len(report.Fallback))
	printStat("失敗", len(report.Failed))
	for _, id := range report.Changed {
		printOK("updated " + id)
	}
	for _, id := range report.Fallback {
		printWarn("invalid document, defaults in use: " + id)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("talismans failed to load: %s", strings.Join(report.Failed, ", "))
	}
	return nil
}
